package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pictalk/pictalk-backend/internal/config"
	"github.com/pictalk/pictalk-backend/internal/database"
	"github.com/pictalk/pictalk-backend/internal/engine"
	"github.com/pictalk/pictalk-backend/internal/handler"
	"github.com/pictalk/pictalk-backend/internal/logger"
	"github.com/pictalk/pictalk-backend/internal/narration"
	"github.com/pictalk/pictalk-backend/internal/repository"
	"github.com/pictalk/pictalk-backend/internal/router"
	"github.com/pictalk/pictalk-backend/internal/service"
	"github.com/pictalk/pictalk-backend/internal/validator"
	"github.com/pictalk/pictalk-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting PicTalk Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	catalogRepo := repository.NewCatalogRepository(pool)
	responseRepo := repository.NewResponseRepository(pool)
	patientRepo := repository.NewPatientRepository(pool)
	reportRepo := repository.NewReportRepository(pool)
	examinerRepo := repository.NewExaminerRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	accessService := service.NewAccessService(examinerRepo, patientRepo)
	catalogService := service.NewCatalogService(catalogRepo, rdb, log)
	patientService := service.NewPatientService(patientRepo, accessService)

	speaker := narration.NewSpeaker(rdb, cfg.NarrationLang, log)
	recorder := engine.NewRecorder(catalogService, responseRepo, log)
	aggregator := engine.NewAggregator(catalogService, responseRepo, reportRepo, log)
	scoringService := service.NewScoringService(aggregator, accessService)
	sessionService := service.NewSessionService(catalogService, recorder, responseRepo, speaker, scoringService, rdb, cfg, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, examinerRepo),
		Examiner:   handler.NewExaminerHandler(authService, examinerRepo),
		Patient:    handler.NewPatientHandler(patientService),
		Catalog:    handler.NewCatalogHandler(catalogService),
		Assessment: handler.NewAssessmentHandler(sessionService, patientService),
		Report:     handler.NewReportHandler(scoringService),
		WS:         handler.NewWSHandler(rdb, sessionService, patientService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	narrationWorker := worker.NewNarrationWorker(rdb, log)
	go narrationWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every level payload BEFORE accepting traffic so the first
	// session never lazy-loads.
	if err := catalogService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, sessionService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the narration worker and wait for the queue to drain.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
