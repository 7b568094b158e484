package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention trims audit events past their retention.
	TaskAuditRetention = "audit:retention"
	// TaskIngestCleanup trims ingested events past their retention.
	TaskIngestCleanup = "ingest:cleanup"
)

// RetentionPayload bounds a retention run. A zero MaxAge uses the
// configured default.
type RetentionPayload struct {
	MaxAge string `json:"maxAge,omitempty"`
}

// NewAuditRetentionTask constructs the audit retention task.
func NewAuditRetentionTask(payload RetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// NewIngestCleanupTask constructs the ingest cleanup task.
func NewIngestCleanupTask(payload RetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIngestCleanup, data), nil
}
