package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/medicare-voice/intake/internal/api/router"
	appconfig "github.com/medicare-voice/intake/internal/config"
	"github.com/medicare-voice/intake/internal/conversation"
	"github.com/medicare-voice/intake/internal/http/handlers"
	"github.com/medicare-voice/intake/internal/observability/metrics"
	"github.com/medicare-voice/intake/internal/store"
	"github.com/medicare-voice/intake/internal/telephony"
	"github.com/medicare-voice/intake/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medicare voice intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	repo := store.NewRepository(pool, cfg.SlotCapacity, logger)

	// Transcript archival is optional; without Redis the engine simply
	// keeps no copies beyond the in-memory session.
	var callLog *conversation.RedisCallLog
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, transcript archive disabled", "error", err)
		} else {
			callLog = conversation.NewRedisCallLog(rdb, logger)
		}
	}

	var llmService *conversation.LLMService
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer geminiClient.Close()
		llmService = conversation.NewLLMService(geminiClient, cfg.LLMTimeout, logger)
	} else {
		logger.Warn("GEMINI_API_KEY not set, extraction runs pattern rules only")
	}

	twilioClient := telephony.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, logger)

	intakeMetrics := metrics.NewIntakeMetrics(prometheus.DefaultRegisterer)

	engine := conversation.NewEngine(
		conversation.NewRegistry(),
		llmService,
		repo,
		twilioClient,
		callLog,
		intakeMetrics,
		logger,
	)

	voiceHandler := handlers.NewVoiceHandler(engine, twilioClient, cfg, intakeMetrics, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		Voice:          voiceHandler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
