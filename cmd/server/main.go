package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mixelka/massmailer/internal/config"
	"github.com/mixelka/massmailer/internal/database"
	"github.com/mixelka/massmailer/internal/dispatch"
	"github.com/mixelka/massmailer/internal/notify"
	"github.com/mixelka/massmailer/internal/parser"
	"github.com/mixelka/massmailer/internal/provider"
	"github.com/mixelka/massmailer/internal/scheduler"
	"github.com/mixelka/massmailer/internal/server"
	"github.com/mixelka/massmailer/internal/tracker"
	"github.com/mixelka/massmailer/pkg/models"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mass mailer")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Create components
	gmail := provider.NewGmail(provider.GmailConfig{})
	outlook := provider.NewOutlook(provider.OutlookConfig{}, logger)
	registry := provider.NewRegistry(gmail, outlook)

	poller := tracker.New(tracker.Policy{
		MaxAttempts: cfg.PollMaxAttempts,
		Interval:    cfg.PollInterval,
	}, logger)

	engine := dispatch.NewEngine(db, db, registry, poller, logger)

	// Create Telegram notifier (optional)
	var notifier *notify.Notifier
	if cfg.TelegramEnabled() {
		notifier, err = notify.New(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Error("failed to create telegram notifier", "error", err)
			os.Exit(1)
		}
		logger.Info("telegram notifications enabled", "chat_id", cfg.TelegramChatID)
	}

	// Deferred jobs run through the same engine as immediate ones
	sched := scheduler.New(func(ctx context.Context, job *models.SendJob) {
		result, err := engine.Dispatch(ctx, job)
		if err != nil {
			logger.Error("scheduled dispatch failed",
				"sender", job.SenderEmail, "error", err)
			notifier.BatchFailed(ctx, job, err)
			return
		}
		logger.Info("scheduled dispatch finished",
			"sender", job.SenderEmail, "sent", result.Sent, "errors", len(result.Errors))
		notifier.BatchFinished(ctx, job, result)
	}, cfg.SchedulerTick, logger)
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Deps{
		Config:     cfg,
		DB:         db,
		Engine:     engine,
		Scheduler:  sched,
		Notifier:   notifier,
		Normalizer: parser.NewBodyNormalizer(),
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Router(),
	}

	// Setup graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", "error", err)
		}
	}()

	logger.Info("http server listening", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
