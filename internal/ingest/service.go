package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prismboard/prismboard/internal/authz"
	"github.com/prismboard/prismboard/internal/observability"
)

// Guard is the slice of the authorization core the ingest path needs.
type Guard interface {
	RequireAccess(ctx context.Context, principal string, workspaceID int64, capability authz.Capability) (*authz.Access, error)
}

// Invalidator drops derived caches when new events land.
type Invalidator interface {
	InvalidatePrefix(prefix string)
}

type Service struct {
	repo        Repository
	idempotency *IdempotencyStore
	guard       Guard
	caches      Invalidator
	metrics     *observability.Metrics
	logger      *slog.Logger
	clock       func() time.Time
}

func NewService(repo Repository, idempotency *IdempotencyStore, guard Guard, caches Invalidator, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		idempotency: idempotency,
		guard:       guard,
		caches:      caches,
		metrics:     metrics,
		logger:      logger,
		clock:       time.Now,
	}
}

// Accept stores one delivery. A replayed idempotency key returns
// ErrIdempotencyConflict without touching storage; a storage failure
// releases the key so the provider's retry is not locked out.
func (s *Service) Accept(ctx context.Context, principal string, workspaceID int64, key, source, kind string, payload json.RawMessage) (*Event, error) {
	if _, err := s.guard.RequireAccess(ctx, principal, workspaceID, authz.CapWrite); err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		return nil, ErrKeyRequired
	}
	if len(payload) == 0 {
		return nil, ErrPayloadRequired
	}

	if err := s.idempotency.CheckAndInsert(ctx, workspaceID, key); err != nil {
		return nil, err
	}

	event := &Event{
		WorkspaceID: workspaceID,
		Source:      source,
		Kind:        kind,
		Payload:     payload,
		ReceivedAt:  s.clock().UTC(),
	}
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		if relErr := s.idempotency.Delete(ctx, workspaceID, key); relErr != nil {
			s.logger.Error("releasing idempotency key failed", "key", key, "error", relErr)
		}
		return nil, fmt.Errorf("ingest: store event: %w", err)
	}

	if s.caches != nil {
		s.caches.InvalidatePrefix(fmt.Sprintf("insights:%d:", workspaceID))
	}
	s.metrics.IngestAccepted(source)
	return event, nil
}

// Recent lists the latest events for a workspace the caller can read.
func (s *Service) Recent(ctx context.Context, principal string, workspaceID int64, limit int) ([]Event, error) {
	if _, err := s.guard.RequireAccess(ctx, principal, workspaceID, authz.CapRead); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListEvents(ctx, workspaceID, limit)
}
