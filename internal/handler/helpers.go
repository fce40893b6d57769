package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pictalk/pictalk-backend/internal/middleware"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/response"
)

// currentExaminer rebuilds the acting examiner from JWT claims. Returns nil
// and writes the error response when no claims are present.
func currentExaminer(c *gin.Context) *model.Examiner {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil
	}
	return &model.Examiner{ID: claims.ExaminerID, Kind: claims.Kind}
}

// paramID parses a numeric path parameter. Writes the error response and
// returns false on malformed input.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
