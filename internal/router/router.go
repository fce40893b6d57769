package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pictalk/pictalk-backend/internal/config"
	"github.com/pictalk/pictalk-backend/internal/handler"
	"github.com/pictalk/pictalk-backend/internal/middleware"
	"github.com/pictalk/pictalk-backend/internal/response"
	"github.com/pictalk/pictalk-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Examiner   *handler.ExaminerHandler
	Patient    *handler.PatientHandler
	Catalog    *handler.CatalogHandler
	Assessment *handler.AssessmentHandler
	Report     *handler.ReportHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	sessionService *service.SessionService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally; level payloads compress well.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{
			"status":          "ok",
			"active_sessions": sessionService.ActiveSessions(),
		})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireExaminerJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireExaminerJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Examiner Group (JWT + Single Device) ───────────────────────
	api := router.Group("/api/v1")
	api.Use(
		middleware.RequireExaminerJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		// Patient registry.
		api.GET("/patients", handlers.Patient.List)
		api.POST("/patients", handlers.Patient.Create)
		api.GET("/patients/check-unique-id", handlers.Patient.CheckUniqueID)
		api.GET("/patients/:id", handlers.Patient.Get)
		api.PUT("/patients/:id", handlers.Patient.Update)
		api.DELETE("/patients/:id", handlers.Patient.Delete)

		// Assessment content, read side.
		api.GET("/levels", handlers.Catalog.ListLevels)
		api.GET("/levels/:level", handlers.Catalog.GetLevel)

		// Traversal session control.
		api.POST("/patients/:id/session", handlers.Assessment.Start)
		api.GET("/patients/:id/session", handlers.Assessment.State)
		api.POST("/patients/:id/session/select", handlers.Assessment.Select)
		api.POST("/patients/:id/session/next", handlers.Assessment.Next)
		api.POST("/patients/:id/session/previous", handlers.Assessment.Previous)
		api.POST("/patients/:id/session/previous-level", handlers.Assessment.PreviousLevel)
		api.POST("/patients/:id/session/exit", handlers.Assessment.Exit)
		api.POST("/patients/:id/session/retake", handlers.Assessment.Retake)

		// Score reports.
		api.GET("/patients/:id/reports", handlers.Report.List)
		api.GET("/patients/:id/reports/latest", handlers.Report.Latest)
		api.POST("/patients/:id/reports", handlers.Report.Recompute)
	}

	// ─── 3. WebSocket Group (WS Auth via query token) ──────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireExaminerWSAuth(authService))
	{
		wsGroup.GET("/patients/:id/stream", handlers.WS.AssessmentStream)
	}

	// ─── 4. Admin Group (JWT + kind check) ─────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireExaminerJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.RequireAdmin(),
	)
	{
		// Content authoring.
		adminAPI.POST("/levels", handlers.Catalog.CreateLevel)
		adminAPI.DELETE("/levels/:id", handlers.Catalog.DeleteLevel)
		adminAPI.POST("/levels/prewarm", handlers.Catalog.Prewarm)
		adminAPI.POST("/screens", handlers.Catalog.CreateScreen)
		adminAPI.DELETE("/screens/:id", handlers.Catalog.DeleteScreen)
		adminAPI.POST("/images", handlers.Catalog.AddImage)
		adminAPI.DELETE("/images/:id", handlers.Catalog.DeleteImage)
		adminAPI.POST("/questions", handlers.Catalog.CreateQuestion)
		adminAPI.PUT("/questions/:id/answer", handlers.Catalog.SetAnswer)
		adminAPI.DELETE("/questions/:id", handlers.Catalog.DeleteQuestion)

		// Account provisioning.
		adminAPI.POST("/examiners", handlers.Examiner.Create)
	}

	return router
}
