package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pictalk/pictalk-backend/internal/middleware"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/repository"
	"github.com/pictalk/pictalk-backend/internal/response"
	"github.com/pictalk/pictalk-backend/internal/service"
	"github.com/pictalk/pictalk-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService  *service.AuthService
	examinerRepo *repository.ExaminerRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, examinerRepo *repository.ExaminerRepository) *AuthHandler {
	return &AuthHandler{authService: authService, examinerRepo: examinerRepo}
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password and returns a JWT. A new login rotates the
// session, invalidating tokens issued before it.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	examiner, err := h.examinerRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(examiner.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateToken(c.Request.Context(), examiner)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":    token,
		"examiner": examiner,
	})
}

// Logout godoc
// POST /api/v1/auth/logout
// Drops the examiner's active session.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.ExaminerID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the profile of the currently authenticated examiner.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examiner, err := h.examinerRepo.GetByID(c.Request.Context(), claims.ExaminerID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"examiner": examiner})
}
