package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/vendorsync/internal/app"
	"github.com/odyssey-erp/vendorsync/internal/observability"
	"github.com/odyssey-erp/vendorsync/internal/platform/cache"
	"github.com/odyssey-erp/vendorsync/internal/platform/db"
	"github.com/odyssey-erp/vendorsync/internal/shared"
	"github.com/odyssey-erp/vendorsync/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.Database())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services, err := app.BuildServices(ctx, cfg, logger, pool, redisClient, metrics.Registerer())
	if err != nil {
		logger.Error("build services", slog.Any("error", err))
		os.Exit(1)
	}

	configs, err := services.Vendors.List(ctx)
	if err != nil {
		logger.Error("list vendors", slog.Any("error", err))
		os.Exit(1)
	}
	schedule, err := jobs.VendorSchedule(configs)
	if err != nil {
		logger.Error("build vendor schedule", slog.Any("error", err))
		os.Exit(1)
	}

	importJob := jobs.NewVendorImportJob(services.Importer, logger, services.JobMetrics)
	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskVendorImport, Handler: importJob.Handle},
		{Type: jobs.TaskVendorSweep, Handler: importJob.HandleSweep},
	}
	if cfg.IdempotencyBackend == "postgres" {
		cleanup := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool, cfg.IdempotencyTTL), cfg.IdempotencyTTL, logger, services.JobMetrics)
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskIdempotencyCleanup, Handler: cleanup.Handle})
		schedule = append(schedule, jobs.CronRegistration{Spec: "30 4 * * *", Task: jobs.NewIdempotencyCleanupTask()})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Handlers:    handlers,
		Cron:        schedule,
		Concurrency: cfg.WorkerConcurrency,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting worker metrics server", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker", slog.Int("scheduled_entries", len(schedule)))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
