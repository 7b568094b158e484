package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/prismboard/prismboard/internal/app"
	"github.com/prismboard/prismboard/internal/audit"
	"github.com/prismboard/prismboard/internal/ingest"
	jobmetrics "github.com/prismboard/prismboard/internal/jobs"
	"github.com/prismboard/prismboard/internal/platform/db"
	"github.com/prismboard/prismboard/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	auditJob := jobs.NewAuditRetentionJob(audit.NewRepository(pool), cfg.AuditRetention, logger, metrics)
	ingestJob := jobs.NewIngestCleanupJob(ingest.NewPGRepository(pool), cfg.IngestRetention, logger, metrics)

	auditTask, err := jobs.NewAuditRetentionTask(jobs.RetentionPayload{})
	if err != nil {
		logger.Error("build audit retention task", slog.Any("error", err))
		os.Exit(1)
	}
	ingestTask, err := jobs.NewIngestCleanupTask(jobs.RetentionPayload{})
	if err != nil {
		logger.Error("build ingest cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditRetention, Handler: auditJob.Handle},
			{Type: jobs.TaskIngestCleanup, Handler: ingestJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: auditTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: ingestTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
