package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/resultlog"
	"github.com/stemsi/exstem-quiz/internal/router"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
	"github.com/stemsi/exstem-quiz/internal/worker"
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
		Msg("Starting ExStem Quiz")

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

	// ─── Result Log Sinks ──────────────────────────────────────────────
	// The text file is always written; RabbitMQ is optional. Each sink is
	// named so the worker retries only the ones that failed.
	sinks := resultlog.Fanout{
		{Name: "file", Sink: resultlog.NewFileSink(cfg.ResultLogPath)},
	}

	if dial := database.NewAMQPDialer(cfg, log); dial != nil {
		amqpSink := resultlog.NewAMQPSink(dial, cfg.AMQPResultQueue)
		if err := amqpSink.Connect(); err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, result events will be published once it is back")
		}
		defer amqpSink.Close()
		sinks = append(sinks, resultlog.Target{Name: "amqp", Sink: amqpSink})
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	questionRepo := repository.NewQuestionRepository(pool)
	questionCache := repository.NewQuestionCache(rdb)
	settingRepo := repository.NewSettingRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	tokenRepo := repository.NewTokenRepository(rdb)
	resultFeed := repository.NewResultFeed(rdb)

	trail := resultlog.NewTrail(rdb, config.WorkerKey.PersistResultLogQueue, sinks, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo, adminRepo, tokenRepo, log)
	questionService := service.NewQuestionService(questionRepo, questionCache, log)
	settingService := service.NewSettingService(settingRepo, log)
	examService := service.NewExamService(questionRepo, resultRepo, trail, resultFeed, log)
	statsService := service.NewStatsService(questionService, authService, examService)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		Exam:     handler.NewExamHandler(questionService, settingService, examService, log),
		Question: handler.NewQuestionHandler(questionService, cfg.MaxUploadBytes, log),
		Setting:  handler.NewSettingHandler(settingService, log),
		Stats:    handler.NewStatsHandler(statsService, log),
		System:   handler.NewSystemHandler(rdb, pool, log),
		WS:       handler.NewWSHandler(resultFeed, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	resultLogWorker := worker.NewResultLogWorker(rdb, sinks, log)
	go func() {
		resultLogWorker.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Seed the default settings row and the question payload before
	// accepting traffic.
	if _, err := settingService.Get(ctx); err != nil {
		log.Warn().Err(err).Msg("Settings prewarm failed")
	}
	if _, err := questionService.ListForExam(ctx); err != nil {
		log.Warn().Err(err).Msg("Question cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

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

	// 2. Stop the result log worker and wait for its queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Result log worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
