package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/repository"
	"github.com/pictalk/pictalk-backend/internal/response"
	"github.com/pictalk/pictalk-backend/internal/service"
	"github.com/pictalk/pictalk-backend/internal/validator"
)

// PatientHandler handles patient registry endpoints.
type PatientHandler struct {
	patientService *service.PatientService
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(patientService *service.PatientService) *PatientHandler {
	return &PatientHandler{patientService: patientService}
}

// failPatient maps registry errors onto the response envelope.
func failPatient(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, repository.ErrDuplicate):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// Create godoc
// POST /api/v1/patients
// Registers a patient under the calling examiner.
func (h *PatientHandler) Create(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}

	var req model.CreatePatientRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	patient, err := h.patientService.Create(c.Request.Context(), examiner, &req)
	if err != nil {
		failPatient(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"patient": patient})
}

// List godoc
// GET /api/v1/patients
// Lists the patients visible to the examiner, newest first.
func (h *PatientHandler) List(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}

	patients, err := h.patientService.List(c.Request.Context(), examiner)
	if err != nil {
		failPatient(c, err)
		return
	}
	if patients == nil {
		patients = []model.Patient{}
	}
	response.Success(c, http.StatusOK, gin.H{"patients": patients})
}

// CheckUniqueID godoc
// GET /api/v1/patients/check-unique-id?unique_id=...
// Reports whether the external identifier is free to register.
func (h *PatientHandler) CheckUniqueID(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}

	uniqueID := strings.TrimSpace(c.Query("unique_id"))
	if uniqueID == "" || len(uniqueID) > 64 {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	available, err := h.patientService.CheckUniqueID(c.Request.Context(), uniqueID)
	if err != nil {
		failPatient(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"available": available})
}

// Get godoc
// GET /api/v1/patients/:id
func (h *PatientHandler) Get(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	patient, err := h.patientService.Get(c.Request.Context(), examiner, id)
	if err != nil {
		failPatient(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"patient": patient})
}

// Update godoc
// PUT /api/v1/patients/:id
func (h *PatientHandler) Update(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	patient, err := h.patientService.Update(c.Request.Context(), examiner, id, &req)
	if err != nil {
		failPatient(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"patient": patient})
}

// Delete godoc
// DELETE /api/v1/patients/:id
// Removes a patient together with their responses and score reports.
func (h *PatientHandler) Delete(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.patientService.Delete(c.Request.Context(), examiner, id); err != nil {
		failPatient(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}
