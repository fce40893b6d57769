package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pictalk/pictalk-backend/internal/engine"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/response"
	"github.com/pictalk/pictalk-backend/internal/service"
	"github.com/pictalk/pictalk-backend/internal/validator"
)

// AssessmentHandler drives traversal sessions over REST. The WebSocket
// stream is the primary control surface; these endpoints serve clients that
// cannot hold a socket open.
type AssessmentHandler struct {
	sessionService *service.SessionService
	patientService *service.PatientService
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(sessionService *service.SessionService, patientService *service.PatientService) *AssessmentHandler {
	return &AssessmentHandler{sessionService: sessionService, patientService: patientService}
}

// respondCursor maps a traversal outcome onto the response envelope. Invalid
// transitions are absorbed: the state is returned unchanged so a double-tap
// on a navigation control is harmless.
func respondCursor(c *gin.Context, cursor engine.CursorState, err error) {
	switch {
	case err == nil, errors.Is(err, engine.ErrInvalidTransition):
		response.Success(c, http.StatusOK, gin.H{"cursor": cursor})
	case errors.Is(err, service.ErrNoActiveSession):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
	case errors.Is(err, engine.ErrInvalidSelection):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidSelection)
	case errors.Is(err, engine.ErrContentNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrContentNotFound)
	case errors.Is(err, engine.ErrPersistence):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrPersistenceFailure)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// checkPatient verifies the examiner may drive this patient's session.
func (h *AssessmentHandler) checkPatient(c *gin.Context) (int, bool) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return 0, false
	}
	patientID, ok := paramID(c, "id")
	if !ok {
		return 0, false
	}
	if _, err := h.patientService.Get(c.Request.Context(), examiner, patientID); err != nil {
		failPatient(c, err)
		return 0, false
	}
	return patientID, true
}

// Start godoc
// POST /api/v1/patients/:id/session
// Opens a traversal session at level 1, replacing any running one.
func (h *AssessmentHandler) Start(c *gin.Context) {
	patientID, ok := h.checkPatient(c)
	if !ok {
		return
	}

	cursor, err := h.sessionService.Start(c.Request.Context(), patientID)
	respondCursor(c, cursor, err)
}

// State godoc
// GET /api/v1/patients/:id/session
// Returns the current cursor without mutating anything.
func (h *AssessmentHandler) State(c *gin.Context) {
	patientID, ok := h.checkPatient(c)
	if !ok {
		return
	}

	cursor, err := h.sessionService.State(patientID)
	respondCursor(c, cursor, err)
}

// Select godoc
// POST /api/v1/patients/:id/session/select
// Registers the subject's picture pick for the presented question.
func (h *AssessmentHandler) Select(c *gin.Context) {
	patientID, ok := h.checkPatient(c)
	if !ok {
		return
	}

	var req model.SelectRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	cursor, err := h.sessionService.Select(c.Request.Context(), patientID, req.ImageID)
	respondCursor(c, cursor, err)
}

// Next godoc
// POST /api/v1/patients/:id/session/next
func (h *AssessmentHandler) Next(c *gin.Context) {
	patientID, ok := h.checkPatient(c)
	if !ok {
		return
	}
	cursor, err := h.sessionService.Next(c.Request.Context(), patientID)
	respondCursor(c, cursor, err)
}

// Previous godoc
// POST /api/v1/patients/:id/session/previous
func (h *AssessmentHandler) Previous(c *gin.Context) {
	patientID, ok := h.checkPatient(c)
	if !ok {
		return
	}
	cursor, err := h.sessionService.Previous(c.Request.Context(), patientID)
	respondCursor(c, cursor, err)
}

// PreviousLevel godoc
// POST /api/v1/patients/:id/session/previous-level
func (h *AssessmentHandler) PreviousLevel(c *gin.Context) {
	patientID, ok := h.checkPatient(c)
	if !ok {
		return
	}
	cursor, err := h.sessionService.PreviousLevel(c.Request.Context(), patientID)
	respondCursor(c, cursor, err)
}

// Exit godoc
// POST /api/v1/patients/:id/session/exit
// Ends the session; end-of-session scoring runs in the background.
func (h *AssessmentHandler) Exit(c *gin.Context) {
	patientID, ok := h.checkPatient(c)
	if !ok {
		return
	}
	cursor, err := h.sessionService.Exit(c.Request.Context(), patientID)
	respondCursor(c, cursor, err)
}

// Retake godoc
// POST /api/v1/patients/:id/session/retake
// Restarts the running session from level 1.
func (h *AssessmentHandler) Retake(c *gin.Context) {
	patientID, ok := h.checkPatient(c)
	if !ok {
		return
	}
	cursor, err := h.sessionService.Retake(c.Request.Context(), patientID)
	respondCursor(c, cursor, err)
}
