package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pictalk/pictalk-backend/internal/engine"
	"github.com/pictalk/pictalk-backend/internal/repository"
	"github.com/pictalk/pictalk-backend/internal/response"
	"github.com/pictalk/pictalk-backend/internal/service"
)

// ReportHandler serves score reports and on-demand recomputes.
type ReportHandler struct {
	scoringService *service.ScoringService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(scoringService *service.ScoringService) *ReportHandler {
	return &ReportHandler{scoringService: scoringService}
}

func failReport(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrNoReports):
		response.Fail(c, http.StatusNotFound, response.ErrNoReports)
	case errors.Is(err, engine.ErrPersistence):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrPersistenceFailure)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// parseWindow reads optional from/to RFC 3339 query params.
func parseWindow(c *gin.Context) (from, to *time.Time, ok bool) {
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &from}, {"to", &to}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return nil, nil, false
		}
		*q.dst = &t
	}
	return from, to, true
}

// List godoc
// GET /api/v1/patients/:id/reports?from=...&to=...
// Returns the patient's report history newest-first, optionally bounded to
// a taken_at window.
func (h *ReportHandler) List(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}
	patientID, ok := paramID(c, "id")
	if !ok {
		return
	}
	from, to, ok := parseWindow(c)
	if !ok {
		return
	}

	reports, err := h.scoringService.ListReports(c.Request.Context(), examiner, patientID, from, to)
	if err != nil {
		failReport(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reports": reports})
}

// Latest godoc
// GET /api/v1/patients/:id/reports/latest
func (h *ReportHandler) Latest(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}
	patientID, ok := paramID(c, "id")
	if !ok {
		return
	}

	report, err := h.scoringService.LatestReport(c.Request.Context(), examiner, patientID)
	if err != nil {
		failReport(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// Recompute godoc
// POST /api/v1/patients/:id/reports
// Rebuilds the patient's aggregate score from their responses and appends a
// fresh report snapshot.
func (h *ReportHandler) Recompute(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}
	patientID, ok := paramID(c, "id")
	if !ok {
		return
	}

	report, err := h.scoringService.Recompute(c.Request.Context(), examiner, patientID)
	if err != nil {
		failReport(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"report": report})
}
