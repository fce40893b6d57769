// Package engine implements the assessment traversal and scoring core: the
// state machine that walks a patient through levels, screens and questions,
// the recorder that persists each answer exactly once per question, and the
// aggregator that turns accumulated answers into score report snapshots.
//
// The package is pure logic over small interfaces. Content, responses and
// reports are reached through collaborators; HTTP, SQL and Redis live in the
// repository/service layers.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/pictalk/pictalk-backend/internal/model"
)

// Error taxonomy shared by the core modules. Callers classify with errors.Is.
var (
	// ErrContentNotFound marks a missing or malformed catalog entity, such
	// as an absent level or a question whose answer key does not resolve
	// within its own screen's image set.
	ErrContentNotFound = errors.New("content not found")

	// ErrPersistence marks a response store or report write failure.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidTransition marks a navigation request the current state
	// forbids. The HTTP/WS boundary absorbs it as a no-op.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidSelection marks a selection of an image that is not on the
	// currently presented screen.
	ErrInvalidSelection = errors.New("selected image not on current screen")
)

// Catalog is the content repository consumed by the engine. The catalog is
// immutable for the duration of a traversal session.
type Catalog interface {
	// ListLevels returns the level index ordered by ordinal, without screens.
	ListLevels(ctx context.Context) ([]model.TestLevel, error)
	// GetLevel returns a level by ordinal with its screens ordered by screen
	// number, each screen carrying its images and questions. Returns
	// ErrContentNotFound if no such level exists.
	GetLevel(ctx context.Context, level int) (*model.TestLevel, error)
	// GetQuestion returns a question by ID with the owning screen's image
	// set populated. Returns ErrContentNotFound if no such question exists.
	GetQuestion(ctx context.Context, questionID int) (*model.Question, error)
}

// ResponseStore persists patient selections keyed by (patient, question).
type ResponseStore interface {
	// Upsert writes a response; a second write for the same key overwrites.
	Upsert(ctx context.Context, resp *model.Response) error
	ListByPatient(ctx context.Context, patientID int) ([]model.Response, error)
}

// ReportStore appends immutable score reports. Implementations must write
// the patient's running score and the report atomically.
type ReportStore interface {
	Append(ctx context.Context, report *model.ScoreReport) error
	List(ctx context.Context, patientID int, from, to *time.Time) ([]model.ScoreReport, error)
}

// Narrator is the best-effort speech side channel. Speak must not block the
// caller; failures are swallowed by the implementation.
type Narrator interface {
	Speak(patientID int, text string)
}

// resolveAnswerKey returns the question's correct image ID, verifying it is
// resolvable within the question's own screen image set. An unresolvable key
// is a content-authoring defect, not a scoring zero.
func resolveAnswerKey(q *model.Question) (int, error) {
	if q.AnswerImageID == nil {
		return 0, ErrContentNotFound
	}
	for _, img := range q.Images {
		if img.ID == *q.AnswerImageID {
			return *q.AnswerImageID, nil
		}
	}
	return 0, ErrContentNotFound
}
