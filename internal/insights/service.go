// Package insights aggregates ingested events into the dashboard
// summary. Aggregations are expensive, so results are served through the
// process cache with a short freshness window and a stale-while-
// revalidate tail.
package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/prismboard/prismboard/internal/authz"
	"github.com/prismboard/prismboard/internal/observability"
	"github.com/prismboard/prismboard/internal/platform/cache"
)

// SummaryTTL is how long an aggregation counts as fresh. Entries remain
// servable through the store's stale window while a refresh runs.
const SummaryTTL = 30 * time.Second

// Window bounds an aggregation.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SourceCount is one source's share of the window.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// Summary is the dashboard headline block.
type Summary struct {
	WorkspaceID int64         `json:"workspaceId"`
	Window      Window        `json:"window"`
	TotalEvents int64         `json:"totalEvents"`
	BySource    []SourceCount `json:"bySource"`
	ComputedAt  time.Time     `json:"computedAt"`
}

// Repository runs the aggregation queries.
type Repository interface {
	Summarize(ctx context.Context, workspaceID int64, window Window) (*Summary, error)
}

// Guard is the slice of the authorization core the read path needs.
type Guard interface {
	RequireAccess(ctx context.Context, principal string, workspaceID int64, capability authz.Capability) (*authz.Access, error)
}

type Service struct {
	repo    Repository
	store   *cache.Store
	guard   Guard
	metrics *observability.Metrics
	ttl     time.Duration
}

func NewService(repo Repository, store *cache.Store, guard Guard, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, store: store, guard: guard, metrics: metrics, ttl: SummaryTTL}
}

func summaryKey(workspaceID int64, window Window) string {
	return fmt.Sprintf("insights:%d:summary:%d:%d", workspaceID, window.From.Unix(), window.To.Unix())
}

// Summarize returns the dashboard summary for a window the caller can
// read. Concurrent misses for the same key collapse into one query, and
// a stale entry is served while the refresh happens in the background.
func (s *Service) Summarize(ctx context.Context, principal string, workspaceID int64, window Window) (*Summary, error) {
	if _, err := s.guard.RequireAccess(ctx, principal, workspaceID, authz.CapRead); err != nil {
		return nil, err
	}
	if window.To.IsZero() {
		window.To = time.Now().UTC()
	}
	if window.From.IsZero() {
		window.From = window.To.Add(-24 * time.Hour)
	}

	fetched := false
	value, err := s.store.GetOrSet(ctx, summaryKey(workspaceID, window), s.ttl, func(ctx context.Context) (any, error) {
		fetched = true
		return s.repo.Summarize(ctx, workspaceID, window)
	})
	if err != nil {
		return nil, fmt.Errorf("insights: summarize: %w", err)
	}
	if fetched {
		s.metrics.InsightLookup("miss")
	} else {
		s.metrics.InsightLookup("hit")
	}
	summary, ok := value.(*Summary)
	if !ok {
		return nil, fmt.Errorf("insights: unexpected cache value %T", value)
	}
	return summary, nil
}
