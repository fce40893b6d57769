package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/rs/zerolog"
)

// Aggregator recomputes a patient's total score from the response store and
// appends an immutable, timestamped report snapshot. Reports are an
// append-only history: two recomputes with no new responses yield equal
// score and detail under distinct identities.
type Aggregator struct {
	catalog Catalog
	store   ResponseStore
	reports ReportStore
	log     zerolog.Logger

	// Recomputes for the same patient are serialized so a stale score is
	// never written after a newer recompute has already run. Entries are
	// refcounted and evicted once the last holder releases, so the map
	// stays bounded by the number of in-flight recomputes.
	mu    sync.Mutex
	locks map[int]*patientLock
}

type patientLock struct {
	mu   sync.Mutex
	refs int
}

// NewAggregator creates an Aggregator.
func NewAggregator(catalog Catalog, store ResponseStore, reports ReportStore, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		catalog: catalog,
		store:   store,
		reports: reports,
		log:     log.With().Str("component", "aggregator").Logger(),
		locks:   make(map[int]*patientLock),
	}
}

// Recompute reads all of the patient's responses, overwrites the running
// score with the count of correct ones and appends a detail report. Score
// and report are written together or not at all (the report store's
// contract); a failed aggregation leaves no partial writes.
func (a *Aggregator) Recompute(ctx context.Context, patientID int) (*model.ScoreReport, error) {
	lock := a.acquirePatient(patientID)
	defer a.releasePatient(patientID, lock)

	responses, err := a.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: list responses: %v", ErrPersistence, err)
	}

	score := 0
	detail := make([]model.ResponseSnapshot, 0, len(responses))
	for _, resp := range responses {
		if resp.IsCorrect {
			score++
		}

		snap := model.ResponseSnapshot{
			QuestionID:      resp.QuestionID,
			SelectedImageID: resp.SelectedImageID,
			IsCorrect:       resp.IsCorrect,
		}
		q, err := a.catalog.GetQuestion(ctx, resp.QuestionID)
		switch {
		case err == nil:
			snap.QuestionText = q.Text
			snap.Options = q.Images
		case errors.Is(err, ErrContentNotFound):
			// Question deleted after it was answered. Keep the bare
			// response row; correctness was derived at write time.
			a.log.Warn().Int("question_id", resp.QuestionID).Msg("Snapshot question missing from catalog")
		default:
			return nil, fmt.Errorf("snapshot question %d: %w", resp.QuestionID, err)
		}
		detail = append(detail, snap)
	}

	report := &model.ScoreReport{
		ID:        uuid.New(),
		PatientID: patientID,
		Score:     score,
		TakenAt:   time.Now().UTC(),
		Detail:    detail,
	}

	if err := a.reports.Append(ctx, report); err != nil {
		return nil, fmt.Errorf("%w: append report: %v", ErrPersistence, err)
	}
	return report, nil
}

// ListReports returns the patient's report history newest-first, optionally
// bounded to a [from, to] window on taken_at.
func (a *Aggregator) ListReports(ctx context.Context, patientID int, from, to *time.Time) ([]model.ScoreReport, error) {
	reports, err := a.reports.List(ctx, patientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: list reports: %v", ErrPersistence, err)
	}
	return reports, nil
}

func (a *Aggregator) acquirePatient(patientID int) *patientLock {
	a.mu.Lock()
	lock, ok := a.locks[patientID]
	if !ok {
		lock = &patientLock{}
		a.locks[patientID] = lock
	}
	lock.refs++
	a.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (a *Aggregator) releasePatient(patientID int, lock *patientLock) {
	lock.mu.Unlock()

	a.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(a.locks, patientID)
	}
	a.mu.Unlock()
}
