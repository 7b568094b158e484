// Package ingest accepts webhook event deliveries from external
// providers and stores them for the insight pipeline. Deliveries carry
// an idempotency key so provider retries never double-ingest.
package ingest

import (
	"encoding/json"
	"errors"
	"time"
)

// Event is one accepted delivery.
type Event struct {
	ID          int64           `json:"id"`
	WorkspaceID int64           `json:"workspaceId"`
	Source      string          `json:"source"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	ReceivedAt  time.Time       `json:"receivedAt"`
}

var (
	// ErrIdempotencyConflict indicates a replayed delivery key.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
	// ErrKeyRequired rejects deliveries without an idempotency key.
	ErrKeyRequired = errors.New("idempotency key required")
	// ErrPayloadRequired rejects empty deliveries.
	ErrPayloadRequired = errors.New("event payload required")
)
