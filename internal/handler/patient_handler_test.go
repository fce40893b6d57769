package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pictalk/pictalk-backend/internal/middleware"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/service"
	"github.com/stretchr/testify/assert"
)

// newCheckUniqueIDRouter mounts the availability endpoint with claims
// injected directly, so the request-shape checks run without a database.
func newCheckUniqueIDRouter(withClaims bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPatientHandler(nil)

	router := gin.New()
	router.GET("/patients/check-unique-id", func(c *gin.Context) {
		if withClaims {
			c.Set(middleware.ContextKeyClaims, &service.Claims{ExaminerID: 1, Kind: model.ExaminerKindUser})
		}
		h.CheckUniqueID(c)
	})
	return router
}

func TestCheckUniqueIDRequiresClaims(t *testing.T) {
	router := newCheckUniqueIDRouter(false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients/check-unique-id?unique_id=abc", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_REQUIRED")
}

func TestCheckUniqueIDRejectsMissingParam(t *testing.T) {
	router := newCheckUniqueIDRouter(true)

	for _, target := range []string{
		"/patients/check-unique-id",
		"/patients/check-unique-id?unique_id=",
		"/patients/check-unique-id?unique_id=%20%20",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR", target)
	}
}

func TestCheckUniqueIDRejectsOverlongValue(t *testing.T) {
	router := newCheckUniqueIDRouter(true)
	long := strings.Repeat("x", 65)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients/check-unique-id?unique_id="+long, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}
