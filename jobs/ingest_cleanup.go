package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/prismboard/prismboard/internal/jobs"
)

// IngestCleanupJob trims stored webhook events past their retention.
type IngestCleanupJob struct {
	Store   RetentionStore
	MaxAge  time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewIngestCleanupJob wires dependencies for the cleanup handler.
func NewIngestCleanupJob(store RetentionStore, maxAge time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IngestCleanupJob {
	return &IngestCleanupJob{
		Store:   store,
		MaxAge:  maxAge,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes ingest cleanup tasks.
func (j *IngestCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("ingest cleanup: handler not configured")
	}
	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	maxAge := j.MaxAge
	if payload.MaxAge != "" {
		parsed, err := time.ParseDuration(payload.MaxAge)
		if err != nil || parsed <= 0 {
			return asynq.SkipRetry
		}
		maxAge = parsed
	}
	if maxAge <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskIngestCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.clock().Add(-maxAge)
	removed, err := j.Store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		resultErr = err
		return err
	}
	j.Metrics.AddPurged(TaskIngestCleanup, removed)
	j.logger().Info("ingest cleanup complete",
		slog.Time("cutoff", cutoff), slog.Int64("removed", removed))
	return nil
}

func (j *IngestCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
