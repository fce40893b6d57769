package model

// TestLevel is an ordered stage of the assessment. Level is the 1-based
// ordinal that defines the traversal sequence; it is unique and strictly
// increasing across the catalog.
type TestLevel struct {
	ID      int      `json:"id"`
	Level   int      `json:"level"`
	Screens []Screen `json:"screens,omitempty"`
}

// Screen is a single presentation unit within a level. It owns up to four
// stimulus images and zero or more questions. A screen with zero questions
// is inert and is never presented to the patient.
type Screen struct {
	ID           int        `json:"id"`
	TestLevelID  int        `json:"test_level_id"`
	ScreenNumber int        `json:"screen_number"`
	Images       []Image    `json:"images"`
	Questions    []Question `json:"questions"`
}

// Image is a stimulus picture on a screen. Slice order is presentation
// order (top-left through bottom-right).
type Image struct {
	ID       int    `json:"id"`
	ScreenID int    `json:"screen_id"`
	URL      string `json:"url"`
}

// Question is a prompt tied to a screen. AnswerImageID references the
// correct image, which must belong to the same screen; it is the ground
// truth for correctness and is nil while the author has not assigned it.
type Question struct {
	ID            int    `json:"id"`
	ScreenID      int    `json:"screen_id"`
	Text          string `json:"text"`
	AnswerImageID *int   `json:"answer_image_id,omitempty"`
	// Images carries the owning screen's image set when the question is
	// fetched standalone, so callers can resolve the answer key.
	Images []Image `json:"images,omitempty"`
}

// HasQuestions reports whether the screen can be presented.
func (s *Screen) HasQuestions() bool {
	return len(s.Questions) > 0
}

// CreateTestLevelRequest is the payload for creating a test level.
type CreateTestLevelRequest struct {
	Level int `json:"level" binding:"required,min=1"`
}

// CreateScreenRequest is the payload for adding a screen to a level.
type CreateScreenRequest struct {
	TestLevelID  int `json:"test_level_id" binding:"required,min=1"`
	ScreenNumber int `json:"screen_number" binding:"required,min=1"`
}

// CreateImageRequest is the payload for attaching an image to a screen.
type CreateImageRequest struct {
	ScreenID int    `json:"screen_id" binding:"required,min=1"`
	URL      string `json:"url" binding:"required,url,max=2048"`
}

// CreateQuestionRequest is the payload for adding a question to a screen.
type CreateQuestionRequest struct {
	ScreenID int    `json:"screen_id" binding:"required,min=1"`
	Text     string `json:"text" binding:"required,min=1,max=2000"`
}

// SetAnswerRequest assigns the correct image for a question.
type SetAnswerRequest struct {
	AnswerImageID int `json:"answer_image_id" binding:"required,min=1"`
}
