package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismboard/prismboard/internal/authz"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type mockRepository struct {
	events    []Event
	insertErr error
}

func (m *mockRepository) InsertEvent(_ context.Context, event *Event) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func (m *mockRepository) ListEvents(_ context.Context, workspaceID int64, limit int) ([]Event, error) {
	var out []Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].WorkspaceID == workspaceID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *mockRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []Event
	var removed int64
	for _, e := range m.events {
		if e.ReceivedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return removed, nil
}

type roleGuard struct {
	roles map[string]authz.Role
}

func (g *roleGuard) RequireAccess(_ context.Context, principal string, workspaceID int64, capability authz.Capability) (*authz.Access, error) {
	role, ok := g.roles[principal]
	if !ok {
		return nil, authz.ErrAccessDenied
	}
	perms := authz.PermissionsForRole(role)
	if !perms.Has(capability) {
		return nil, authz.ErrAccessDenied
	}
	return &authz.Access{Role: role, Permissions: perms, WorkspaceID: workspaceID}, nil
}

type prefixRecorder struct {
	prefixes []string
}

func (p *prefixRecorder) InvalidatePrefix(prefix string) { p.prefixes = append(p.prefixes, prefix) }

func fixture(t *testing.T) (*Service, *mockRepository, *prefixRecorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &mockRepository{}
	guard := &roleGuard{roles: map[string]authz.Role{
		"owner":  authz.RoleOwner,
		"member": authz.RoleMember,
		"viewer": authz.RoleViewer,
	}}
	caches := &prefixRecorder{}
	svc := NewService(repo, NewIdempotencyStore(client, time.Hour), guard, caches, nil, nil)
	return svc, repo, caches
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

// ---------------------------------------------------------------------------
// Accept
// ---------------------------------------------------------------------------

func TestAcceptStoresEvent(t *testing.T) {
	svc, repo, caches := fixture(t)

	event, err := svc.Accept(context.Background(), "member", 7, "dlv-1", "stripe", "invoice.paid",
		payload(t, map[string]string{"invoice": "in_123"}))
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.Equal(t, int64(7), event.WorkspaceID)
	assert.False(t, event.ReceivedAt.IsZero())
	require.Len(t, repo.events, 1)
	assert.Equal(t, []string{"insights:7:"}, caches.prefixes)
}

func TestAcceptRejectsReplayedKey(t *testing.T) {
	svc, repo, _ := fixture(t)

	_, err := svc.Accept(context.Background(), "member", 7, "dlv-1", "stripe", "invoice.paid", payload(t, 1))
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), "member", 7, "dlv-1", "stripe", "invoice.paid", payload(t, 1))
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
	assert.Len(t, repo.events, 1)
}

func TestAcceptKeyScopedPerWorkspace(t *testing.T) {
	svc, repo, _ := fixture(t)

	_, err := svc.Accept(context.Background(), "member", 7, "dlv-1", "stripe", "invoice.paid", payload(t, 1))
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), "member", 8, "dlv-1", "stripe", "invoice.paid", payload(t, 1))
	require.NoError(t, err)
	assert.Len(t, repo.events, 2)
}

func TestAcceptReleasesKeyWhenStorageFails(t *testing.T) {
	svc, repo, _ := fixture(t)
	repo.insertErr = errors.New("pg down")

	_, err := svc.Accept(context.Background(), "member", 7, "dlv-1", "stripe", "invoice.paid", payload(t, 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIdempotencyConflict)

	// The retry must be able to claim the same key again.
	repo.insertErr = nil
	_, err = svc.Accept(context.Background(), "member", 7, "dlv-1", "stripe", "invoice.paid", payload(t, 1))
	require.NoError(t, err)
}

func TestAcceptRequiresWriteCapability(t *testing.T) {
	svc, repo, _ := fixture(t)

	_, err := svc.Accept(context.Background(), "viewer", 7, "dlv-1", "stripe", "invoice.paid", payload(t, 1))
	assert.ErrorIs(t, err, authz.ErrAccessDenied)

	_, err = svc.Accept(context.Background(), "stranger", 7, "dlv-1", "stripe", "invoice.paid", payload(t, 1))
	assert.ErrorIs(t, err, authz.ErrAccessDenied)
	assert.Empty(t, repo.events)
}

func TestAcceptValidation(t *testing.T) {
	svc, _, _ := fixture(t)

	_, err := svc.Accept(context.Background(), "member", 7, "   ", "stripe", "invoice.paid", payload(t, 1))
	assert.ErrorIs(t, err, ErrKeyRequired)

	_, err = svc.Accept(context.Background(), "member", 7, "dlv-1", "stripe", "invoice.paid", nil)
	assert.ErrorIs(t, err, ErrPayloadRequired)
}

// ---------------------------------------------------------------------------
// Recent
// ---------------------------------------------------------------------------

func TestRecentListsNewestFirstForReaders(t *testing.T) {
	svc, _, _ := fixture(t)

	for i, key := range []string{"a", "b", "c"} {
		_, err := svc.Accept(context.Background(), "member", 7, key, "stripe", "invoice.paid", payload(t, i))
		require.NoError(t, err)
	}

	events, err := svc.Recent(context.Background(), "viewer", 7, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[0].ID)

	_, err = svc.Recent(context.Background(), "stranger", 7, 10)
	assert.ErrorIs(t, err, authz.ErrAccessDenied)
}
