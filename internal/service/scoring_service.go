package service

import (
	"context"
	"errors"
	"time"

	"github.com/pictalk/pictalk-backend/internal/engine"
	"github.com/pictalk/pictalk-backend/internal/model"
)

// ErrNoReports is returned when a patient has no score history yet.
var ErrNoReports = errors.New("no score reports for patient")

// ScoringService fronts the scoring aggregator for the HTTP layer: recompute
// on demand or session end, and serve the report history.
type ScoringService struct {
	aggregator *engine.Aggregator
	access     *AccessService
}

// NewScoringService creates a new ScoringService.
func NewScoringService(aggregator *engine.Aggregator, access *AccessService) *ScoringService {
	return &ScoringService{aggregator: aggregator, access: access}
}

// Recompute rebuilds a visible patient's score from their responses and
// appends a report snapshot.
func (s *ScoringService) Recompute(ctx context.Context, examiner *model.Examiner, patientID int) (*model.ScoreReport, error) {
	if _, err := s.access.GetAccessiblePatient(ctx, examiner, patientID); err != nil {
		return nil, err
	}
	return s.aggregator.Recompute(ctx, patientID)
}

// RecomputeDirect rebuilds a patient's score without an examiner visibility
// check. Used by session teardown, where the engine itself is the caller.
func (s *ScoringService) RecomputeDirect(ctx context.Context, patientID int) (*model.ScoreReport, error) {
	return s.aggregator.Recompute(ctx, patientID)
}

// ListReports returns a visible patient's report history newest-first,
// optionally bounded to a taken_at window.
func (s *ScoringService) ListReports(ctx context.Context, examiner *model.Examiner, patientID int, from, to *time.Time) ([]model.ScoreReport, error) {
	if _, err := s.access.GetAccessiblePatient(ctx, examiner, patientID); err != nil {
		return nil, err
	}
	reports, err := s.aggregator.ListReports(ctx, patientID, from, to)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []model.ScoreReport{}
	}
	return reports, nil
}

// LatestReport returns a visible patient's most recent report.
func (s *ScoringService) LatestReport(ctx context.Context, examiner *model.Examiner, patientID int) (*model.ScoreReport, error) {
	reports, err := s.ListReports(ctx, examiner, patientID, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNoReports
	}
	return &reports[0], nil
}
