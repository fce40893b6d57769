package model

import "time"

// Response is a patient's recorded selection for one question. The natural
// key is (patient_id, question_id): re-answering overwrites the row, it
// never duplicates. IsCorrect is derived at write time from the question's
// answer key and is never trusted from the caller.
type Response struct {
	PatientID       int       `json:"patient_id"`
	QuestionID      int       `json:"question_id"`
	SelectedImageID int       `json:"selected_image_id"`
	IsCorrect       bool      `json:"is_correct"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SelectRequest is the payload for recording a selection during traversal.
type SelectRequest struct {
	ImageID int `json:"image_id" binding:"required,min=1"`
}
