package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pictalk/pictalk-backend/internal/engine"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/repository"
	"github.com/pictalk/pictalk-backend/internal/response"
	"github.com/pictalk/pictalk-backend/internal/service"
	"github.com/pictalk/pictalk-backend/internal/validator"
)

// CatalogHandler handles assessment content endpoints: reading the level
// catalog and authoring levels, screens, images and questions.
type CatalogHandler struct {
	catalogService *service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// failCatalog maps catalog errors onto the response envelope.
func failCatalog(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrContentNotFound), errors.Is(err, repository.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, repository.ErrImageLimit):
		response.Fail(c, http.StatusConflict, response.ErrImageLimit)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ListLevels godoc
// GET /api/v1/levels
// Returns the level index ordered by ordinal, without screens.
func (h *CatalogHandler) ListLevels(c *gin.Context) {
	levels, err := h.catalogService.ListLevels(c.Request.Context())
	if err != nil {
		failCatalog(c, err)
		return
	}
	if levels == nil {
		levels = []model.TestLevel{}
	}
	response.Success(c, http.StatusOK, gin.H{"levels": levels})
}

// GetLevel godoc
// GET /api/v1/levels/:level
// Returns one level with its screens, images and questions.
func (h *CatalogHandler) GetLevel(c *gin.Context) {
	ordinal, ok := paramID(c, "level")
	if !ok {
		return
	}

	level, err := h.catalogService.GetLevel(c.Request.Context(), ordinal)
	if err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"level": level})
}

// CreateLevel godoc
// POST /api/v1/admin/levels
func (h *CatalogHandler) CreateLevel(c *gin.Context) {
	var req model.CreateTestLevelRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	lv := &model.TestLevel{Level: req.Level}
	if err := h.catalogService.CreateLevel(c.Request.Context(), lv); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"level": lv})
}

// DeleteLevel godoc
// DELETE /api/v1/admin/levels/:id
func (h *CatalogHandler) DeleteLevel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogService.DeleteLevel(c.Request.Context(), id); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// CreateScreen godoc
// POST /api/v1/admin/screens
func (h *CatalogHandler) CreateScreen(c *gin.Context) {
	var req model.CreateScreenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	scr := &model.Screen{TestLevelID: req.TestLevelID, ScreenNumber: req.ScreenNumber}
	if err := h.catalogService.CreateScreen(c.Request.Context(), scr); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"screen": scr})
}

// DeleteScreen godoc
// DELETE /api/v1/admin/screens/:id
func (h *CatalogHandler) DeleteScreen(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogService.DeleteScreen(c.Request.Context(), id); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// AddImage godoc
// POST /api/v1/admin/images
// Attaches an image to a screen; at most four per screen.
func (h *CatalogHandler) AddImage(c *gin.Context) {
	var req model.CreateImageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	img := &model.Image{ScreenID: req.ScreenID, URL: req.URL}
	if err := h.catalogService.AddImage(c.Request.Context(), img); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"image": img})
}

// DeleteImage godoc
// DELETE /api/v1/admin/images/:id
func (h *CatalogHandler) DeleteImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogService.DeleteImage(c.Request.Context(), id); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// CreateQuestion godoc
// POST /api/v1/admin/questions
// Adds a question to a screen. The answer key starts unassigned and the
// question will not score until SetAnswer is called.
func (h *CatalogHandler) CreateQuestion(c *gin.Context) {
	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q := &model.Question{ScreenID: req.ScreenID, Text: req.Text}
	if err := h.catalogService.CreateQuestion(c.Request.Context(), q); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// SetAnswer godoc
// PUT /api/v1/admin/questions/:id/answer
// Assigns the correct image; it must sit on the question's own screen.
func (h *CatalogHandler) SetAnswer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.SetAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.catalogService.SetAnswer(c.Request.Context(), id, req.AnswerImageID); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:id
func (h *CatalogHandler) DeleteQuestion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogService.DeleteQuestion(c.Request.Context(), id); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Prewarm godoc
// POST /api/v1/admin/levels/prewarm
// Reloads every level payload into the cache.
func (h *CatalogHandler) Prewarm(c *gin.Context) {
	if err := h.catalogService.PrewarmAllCaches(c.Request.Context()); err != nil {
		failCatalog(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}
