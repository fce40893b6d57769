package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/repository"
	"github.com/pictalk/pictalk-backend/internal/response"
	"github.com/pictalk/pictalk-backend/internal/service"
	"github.com/pictalk/pictalk-backend/internal/validator"
)

// ExaminerHandler handles examiner account provisioning. Admins provision
// USER accounts; only superadmins may provision other admins.
type ExaminerHandler struct {
	authService  *service.AuthService
	examinerRepo *repository.ExaminerRepository
}

// NewExaminerHandler creates a new ExaminerHandler.
func NewExaminerHandler(authService *service.AuthService, examinerRepo *repository.ExaminerRepository) *ExaminerHandler {
	return &ExaminerHandler{authService: authService, examinerRepo: examinerRepo}
}

// Create godoc
// POST /api/v1/admin/examiners
func (h *ExaminerHandler) Create(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}

	var req model.CreateExaminerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if req.Kind == model.ExaminerKindAdmin && examiner.Kind != model.ExaminerKindSuperadmin {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	createdBy := examiner.ID
	account := &model.Examiner{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Kind:         req.Kind,
		CreatedBy:    &createdBy,
	}
	if err := h.examinerRepo.Create(c.Request.Context(), account); err != nil {
		response.Fail(c, http.StatusConflict, response.ErrConflict)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"examiner": account})
}
