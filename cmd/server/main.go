package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/database"
	"github.com/stemsi/elearn-backend/internal/handler"
	"github.com/stemsi/elearn-backend/internal/i18n"
	"github.com/stemsi/elearn-backend/internal/logger"
	"github.com/stemsi/elearn-backend/internal/repository"
	"github.com/stemsi/elearn-backend/internal/router"
	"github.com/stemsi/elearn-backend/internal/service"
	"github.com/stemsi/elearn-backend/internal/validator"
	"github.com/stemsi/elearn-backend/internal/worker"
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
		Msg("Starting e-learning backend")

	// ─── Initialize Validator & Translations ───────────────────────────
	validator.Setup()
	if err := i18n.Init(cfg.DefaultLang); err != nil {
		log.Fatal().Err(err).Msg("Failed to load translations")
	}

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
	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	examCache := service.NewExamCache(rdb, cfg.ExamCacheTTL, log)
	authService := service.NewAuthService(cfg, rdb, userRepo)
	userService := service.NewUserService(userRepo, courseRepo, attemptRepo, authService, log)
	courseService := service.NewCourseService(courseRepo, log)
	examService := service.NewExamService(examRepo, courseRepo, examCache, log)
	mediaService := service.NewMediaService(cfg)
	attemptService := service.NewAttemptService(attemptRepo)

	sessionService := service.NewExamSessionService(
		service.NewAttemptGateway(examService, attemptRepo),
		courseService,
		service.NewAttemptQueue(rdb),
		rdb,
		cfg.FinishedSessionTTL,
		log,
	)
	monitorService := service.NewMonitorService(sessionService, attemptRepo)
	dashboardService := service.NewDashboardService(dashboardRepo, sessionService)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		StudentMgmt: handler.NewStudentManagementHandler(userService),
		Course:      handler.NewCourseHandler(courseService),
		Exam:        handler.NewExamHandler(examService),
		Attempt:     handler.NewAttemptHandler(sessionService, attemptService),
		Media:       handler.NewMediaHandler(mediaService),
		WS:          handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Monitor:     handler.NewMonitorHandler(rdb, examService, monitorService, log),
		Dashboard:   handler.NewDashboardHandler(dashboardService),
		System:      handler.NewSystemHandler(rdb, sessionService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	attemptWorker := worker.NewAttemptWorker(attemptRepo, rdb, log)
	workers.Add(3)
	go func() {
		defer workers.Done()
		attemptWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		sessionService.WatchRecorded(workerCtx)
	}()
	go func() {
		defer workers.Done()
		sessionService.RunJanitor(workerCtx, time.Minute)
	}()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Published exams go into Redis before traffic so the first wave of
	// attempt starts does not stampede PostgreSQL.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 2. Stop session clocks. Attempts still running stay ungraded.
	sessionService.Shutdown()

	// 3. Stop background workers; the attempt worker flushes its batch on exit.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
