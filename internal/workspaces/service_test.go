package workspaces

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismboard/prismboard/internal/audit"
	"github.com/prismboard/prismboard/internal/authz"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type mockRepository struct {
	nextID     int64
	bySlug     map[string]*Workspace
	byID       map[int64]*Workspace
	insertErr  error
	deleteErr  error
	deletedIDs []int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		nextID: 1,
		bySlug: make(map[string]*Workspace),
		byID:   make(map[int64]*Workspace),
	}
}

func (m *mockRepository) InsertWorkspace(_ context.Context, slug, name string, settings map[string]string) (*Workspace, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	if _, taken := m.bySlug[slug]; taken {
		return nil, errSlugTaken
	}
	if settings == nil {
		settings = map[string]string{}
	}
	ws := &Workspace{ID: m.nextID, Slug: slug, Name: name, Settings: settings}
	m.nextID++
	m.bySlug[slug] = ws
	m.byID[ws.ID] = ws
	return ws, nil
}

func (m *mockRepository) DeleteWorkspace(_ context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedIDs = append(m.deletedIDs, id)
	if ws, ok := m.byID[id]; ok {
		delete(m.bySlug, ws.Slug)
		delete(m.byID, id)
	}
	return nil
}

func (m *mockRepository) GetWorkspace(_ context.Context, id int64) (*Workspace, error) {
	ws, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ws, nil
}

func (m *mockRepository) GetWorkspaceBySlug(_ context.Context, slug string) (*Workspace, error) {
	ws, ok := m.bySlug[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return ws, nil
}

func (m *mockRepository) UpdateSettings(_ context.Context, id int64, settings map[string]string) error {
	ws, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	ws.Settings = settings
	return nil
}

func (m *mockRepository) Rename(_ context.Context, id int64, name string) error {
	ws, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	ws.Name = name
	return nil
}

type stubMemberships struct {
	owners    map[int64]string
	roles     map[string]authz.Role
	grantErr  error
	grantLog  []int64
	granted   []string
}

func newStubMemberships() *stubMemberships {
	return &stubMemberships{owners: make(map[int64]string), roles: make(map[string]authz.Role)}
}

func (s *stubMemberships) GrantOwner(_ context.Context, principal string, workspaceID int64) error {
	if s.grantErr != nil {
		return s.grantErr
	}
	s.owners[workspaceID] = principal
	s.grantLog = append(s.grantLog, workspaceID)
	s.granted = append(s.granted, principal)
	return nil
}

func (s *stubMemberships) RequireAccess(_ context.Context, principal string, workspaceID int64, capability authz.Capability) (*authz.Access, error) {
	role, ok := s.roles[principal]
	if s.owners[workspaceID] == principal {
		role, ok = authz.RoleOwner, true
	}
	if !ok {
		return nil, authz.ErrAccessDenied
	}
	perms := authz.PermissionsForRole(role)
	if !perms.Has(capability) {
		return nil, authz.ErrAccessDenied
	}
	return &authz.Access{Role: role, Permissions: perms, WorkspaceID: workspaceID}, nil
}

type captureSink struct {
	events []audit.Event
}

func (c *captureSink) Emit(event audit.Event) { c.events = append(c.events, event) }

func fixture(t *testing.T) (*Service, *mockRepository, *stubMemberships, *captureSink) {
	t.Helper()
	repo := newMockRepository()
	members := newStubMemberships()
	sink := &captureSink{}
	svc := NewService(repo, members, sink, nil)
	return svc, repo, members, sink
}

// ---------------------------------------------------------------------------
// Slug generation
// ---------------------------------------------------------------------------

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Acme Analytics":      "acme-analytics",
		"  Café Déjà Vu  ":    "cafe-deja-vu",
		"Data/Ops -- Team #1": "data-ops-team-1",
		"ACME":                "acme",
		"***":                 "workspace",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

// ---------------------------------------------------------------------------
// Creation
// ---------------------------------------------------------------------------

func TestCreateGrantsOwnerAndAudits(t *testing.T) {
	svc, _, members, sink := fixture(t)

	ws, err := svc.Create(context.Background(), "alice", "Acme Analytics", map[string]string{"tz": "UTC"})
	require.NoError(t, err)
	assert.Equal(t, "acme-analytics", ws.Slug)
	assert.Equal(t, "alice", members.owners[ws.ID])

	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.EventWorkspaceCreated, sink.events[0].Name)
	assert.Equal(t, "alice", sink.events[0].Principal)
	assert.Equal(t, ws.ID, sink.events[0].WorkspaceID)
}

func TestCreateRetriesOnSlugCollision(t *testing.T) {
	svc, repo, _, _ := fixture(t)

	first, err := svc.Create(context.Background(), "alice", "Acme", nil)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "bob", "Acme", nil)
	require.NoError(t, err)

	assert.Equal(t, "acme", first.Slug)
	assert.NotEqual(t, first.Slug, second.Slug)
	assert.Contains(t, second.Slug, "acme-")
	assert.Len(t, repo.bySlug, 2)
}

func TestCreateRollsBackWhenOwnerGrantFails(t *testing.T) {
	svc, repo, members, sink := fixture(t)
	members.grantErr = errors.New("memberships down")

	_, err := svc.Create(context.Background(), "alice", "Acme", nil)
	require.Error(t, err)

	// The half-created workspace must not survive.
	assert.Empty(t, repo.byID)
	assert.Len(t, repo.deletedIDs, 1)
	assert.Empty(t, sink.events)
}

// atomicMockRepository provisions the first owner together with the
// workspace, mirroring the transactional production path.
type atomicMockRepository struct {
	*mockRepository
	owners map[int64]string
}

func newAtomicMockRepository() *atomicMockRepository {
	return &atomicMockRepository{mockRepository: newMockRepository(), owners: make(map[int64]string)}
}

func (m *atomicMockRepository) InsertWorkspaceWithOwner(ctx context.Context, slug, name string, settings map[string]string, owner string) (*Workspace, error) {
	ws, err := m.InsertWorkspace(ctx, slug, name, settings)
	if err != nil {
		return nil, err
	}
	m.owners[ws.ID] = owner
	return ws, nil
}

func TestCreatePrefersTransactionalOwnerProvisioning(t *testing.T) {
	repo := newAtomicMockRepository()
	members := newStubMemberships()
	sink := &captureSink{}
	svc := NewService(repo, members, sink, nil)

	ws, err := svc.Create(context.Background(), "alice", "Acme Analytics", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", repo.owners[ws.ID])
	assert.Empty(t, members.grantLog, "transactional path must not issue a separate owner grant")

	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.EventWorkspaceCreated, sink.events[0].Name)
}

func TestTransactionalCreateRetriesOnSlugCollision(t *testing.T) {
	repo := newAtomicMockRepository()
	svc := NewService(repo, newStubMemberships(), &captureSink{}, nil)

	first, err := svc.Create(context.Background(), "alice", "Acme", nil)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "bob", "Acme", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.Slug, second.Slug)
	assert.Equal(t, "alice", repo.owners[first.ID])
	assert.Equal(t, "bob", repo.owners[second.ID])
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := fixture(t)

	_, err := svc.Create(context.Background(), "alice", "   ", nil)
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.Create(context.Background(), "", "Acme", nil)
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)
}

// ---------------------------------------------------------------------------
// Guarded reads and updates
// ---------------------------------------------------------------------------

func TestGetRequiresMembership(t *testing.T) {
	svc, _, members, _ := fixture(t)
	ws, err := svc.Create(context.Background(), "alice", "Acme", nil)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), "alice", ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, got.ID)

	_, err = svc.Get(context.Background(), "mallory", ws.ID)
	assert.ErrorIs(t, err, authz.ErrAccessDenied)

	members.roles["victor"] = authz.RoleViewer
	_, err = svc.Get(context.Background(), "victor", ws.ID)
	assert.NoError(t, err)
}

func TestRenameAndSettingsRequireManage(t *testing.T) {
	svc, repo, members, _ := fixture(t)
	ws, err := svc.Create(context.Background(), "alice", "Acme", nil)
	require.NoError(t, err)
	members.roles["victor"] = authz.RoleViewer

	require.NoError(t, svc.Rename(context.Background(), "alice", ws.ID, "Acme Corp"))
	assert.Equal(t, "Acme Corp", repo.byID[ws.ID].Name)

	err = svc.Rename(context.Background(), "victor", ws.ID, "Hijacked")
	assert.ErrorIs(t, err, authz.ErrAccessDenied)

	require.NoError(t, svc.UpdateSettings(context.Background(), "alice", ws.ID, map[string]string{"theme": "dark"}))
	assert.Equal(t, "dark", repo.byID[ws.ID].Settings["theme"])

	err = svc.UpdateSettings(context.Background(), "victor", ws.ID, nil)
	assert.ErrorIs(t, err, authz.ErrAccessDenied)
}
