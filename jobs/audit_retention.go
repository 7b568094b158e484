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

// RetentionStore deletes rows older than a cutoff and reports the count.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRetentionJob prunes the audit log past its retention horizon.
type AuditRetentionJob struct {
	Store   RetentionStore
	MaxAge  time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditRetentionJob wires dependencies for the retention handler.
func NewAuditRetentionJob(store RetentionStore, maxAge time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{
		Store:   store,
		MaxAge:  maxAge,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes audit retention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit retention: handler not configured")
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

	tracker := j.Metrics.Track(TaskAuditRetention)
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
	j.Metrics.AddPurged(TaskAuditRetention, removed)
	j.logger().Info("audit retention complete",
		slog.Time("cutoff", cutoff), slog.Int64("removed", removed))
	return nil
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
