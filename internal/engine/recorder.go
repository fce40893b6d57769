package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/rs/zerolog"
)

// Recorder validates a submitted answer against the catalog's answer key,
// derives correctness and upserts the response. One response exists per
// (patient, question); rapid repeated calls for the same key are safe, the
// last write wins.
type Recorder struct {
	catalog Catalog
	store   ResponseStore
	log     zerolog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(catalog Catalog, store ResponseStore, log zerolog.Logger) *Recorder {
	return &Recorder{
		catalog: catalog,
		store:   store,
		log:     log.With().Str("component", "recorder").Logger(),
	}
}

// Record persists the patient's selection for a question.
//
// ErrContentNotFound is returned when the question is missing or its answer
// key does not resolve within its own screen — an authoring defect that is
// fatal to this call. Store failures are wrapped as ErrPersistence and left
// to the caller; the traversal keeps going and the subject can re-select.
func (r *Recorder) Record(ctx context.Context, patientID, questionID, selectedImageID int) (*model.Response, error) {
	q, err := r.catalog.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("get question %d: %w", questionID, err)
	}

	answerImageID, err := resolveAnswerKey(q)
	if err != nil {
		return nil, fmt.Errorf("question %d answer key: %w", questionID, err)
	}

	resp := &model.Response{
		PatientID:       patientID,
		QuestionID:      questionID,
		SelectedImageID: selectedImageID,
		IsCorrect:       selectedImageID == answerImageID,
		UpdatedAt:       time.Now().UTC(),
	}

	if err := r.store.Upsert(ctx, resp); err != nil {
		return nil, fmt.Errorf("%w: upsert response: %v", ErrPersistence, err)
	}
	return resp, nil
}
