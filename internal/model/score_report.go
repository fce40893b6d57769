package model

import (
	"time"

	"github.com/google/uuid"
)

// ScoreReport is an immutable, timestamped snapshot of a patient's aggregate
// score. Detail embeds a copy of the joined question/option data at report
// time, so the report stays meaningful even if the catalog later changes.
type ScoreReport struct {
	ID        uuid.UUID          `json:"id"`
	PatientID int                `json:"patient_id"`
	Score     int                `json:"score"`
	TakenAt   time.Time          `json:"taken_at"`
	Detail    []ResponseSnapshot `json:"detail"`
}

// ResponseSnapshot is one response joined with its question text and the
// full image/option list of the question's screen at aggregation time.
type ResponseSnapshot struct {
	QuestionID      int     `json:"question_id"`
	QuestionText    string  `json:"question_text"`
	SelectedImageID int     `json:"selected_image_id"`
	IsCorrect       bool    `json:"is_correct"`
	Options         []Image `json:"options"`
}
