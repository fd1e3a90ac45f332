package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dandantas/taskkeeper/internal/adminapi"
	"github.com/dandantas/taskkeeper/internal/config"
	"github.com/dandantas/taskkeeper/internal/sampletask"
	"github.com/dandantas/taskkeeper/internal/sampletask/evaluator"
	"github.com/dandantas/taskkeeper/internal/sampletask/webhook"
	"github.com/dandantas/taskkeeper/internal/store"
	"github.com/dandantas/taskkeeper/internal/task"
	"github.com/dandantas/taskkeeper/pkg/middleware"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	config.InitLogger(cfg)

	slog.Info("starting taskkeeper", "version", version, "node", cfg.NodeName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
	if err != nil {
		slog.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			slog.Error("failed to disconnect from MongoDB", "error", err)
		}
	}()

	if err := db.EnsureIndexes(ctx); err != nil {
		slog.Error("failed to create indexes", "error", err)
		os.Exit(1)
	}

	registry := task.NewRegistry(db, cfg.NodeName, false)
	registry.Start(ctx)

	if cfg.SampleTaskEnabled {
		if err := registerSampleTask(ctx, registry, cfg); err != nil {
			slog.Error("failed to register sample task", "error", err)
			os.Exit(1)
		}
	}

	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}
	router := adminapi.NewRouter(registry, corsConfig)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		slog.Info("starting admin API HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("received shutdown signal, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	slog.Info("stopping scheduling engine...")
	registry.Shutdown(shutdownCtx)

	slog.Info("shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("taskkeeper stopped")
}

// registerSampleTask wires the endpoint-checking Callback that exercises
// the scheduling engine end to end: HTTP polling, rule evaluation and
// asynchronous webhook alert delivery.
func registerSampleTask(ctx context.Context, registry *task.Registry, cfg *config.Config) error {
	checker, err := sampletask.NewChecker(sampletask.Config{
		Target: sampletask.Target{
			URL:     cfg.SampleTaskTargetURL,
			Method:  http.MethodGet,
			Timeout: cfg.SampleTaskTimeout,
		},
		Rules: []evaluator.Rule{
			{Name: "http-status-not-ok", Expression: "$.status", Operator: "ne", ExpectedValue: "ok", AlertOnMatch: true},
		},
		Webhook: webhook.Config{
			URL:         cfg.SampleTaskWebhookURL,
			RetryConfig: webhook.RetryConfig{MaxAttempts: 3, InitialDelayMs: 500, MaxDelayMs: 5000},
		},
		Workers: cfg.SampleTaskWorkers,
	})
	if err != nil {
		return err
	}

	_, err = registry.Register(ctx, task.Config{
		Name:                    "sample-endpoint-check",
		CronExpression:          cfg.SampleTaskCron,
		MaxExpectedMinutesToRun: 5,
		Criticality:             task.CriticalityImportant,
		Recovery:                task.RecoverySelfHealing,
		RetentionPolicy: task.RetentionPolicy{
			MaxAge:     int64(cfg.RetentionMaxAgeDays) * 24 * 60 * 60,
			MaxCount:   cfg.RetentionMaxCount,
			DeleteLogs: cfg.RetentionDeleteLogs,
		},
	}, checker.Callback())
	return err
}
