package workspaces

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prismboard/prismboard/internal/audit"
	"github.com/prismboard/prismboard/internal/authz"
)

// slugAttempts bounds collision retries before creation gives up.
const slugAttempts = 5

// Memberships is the slice of the authorization core that workspace
// creation and guarded updates need.
type Memberships interface {
	GrantOwner(ctx context.Context, principal string, workspaceID int64) error
	RequireAccess(ctx context.Context, principal string, workspaceID int64, capability authz.Capability) (*authz.Access, error)
}

type AuditSink interface {
	Emit(event audit.Event)
}

// ownerProvisioner is implemented by repositories that can create the
// workspace and its first owner membership in one transaction. When the
// repository offers it, Create prefers it over the insert-then-grant
// sequence and its compensating delete.
type ownerProvisioner interface {
	InsertWorkspaceWithOwner(ctx context.Context, slug, name string, settings map[string]string, owner string) (*Workspace, error)
}

type Service struct {
	repo   Repository
	authz  Memberships
	audit  AuditSink
	logger *slog.Logger
}

func NewService(repo Repository, memberships Memberships, sink AuditSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: memberships, audit: sink, logger: logger}
}

// Create provisions a workspace and makes the creator its first owner. The
// two writes run in one transaction when the repository supports it; on the
// split path a failed owner grant removes the workspace row again so no
// ownerless tenant is left behind.
func (s *Service) Create(ctx context.Context, creator, name string, settings map[string]string) (*Workspace, error) {
	if creator == "" {
		return nil, authz.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	provisioner, atomic := s.repo.(ownerProvisioner)

	base := Slugify(name)
	var ws *Workspace
	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug := base
		if attempt > 0 {
			slug = fmt.Sprintf("%s-%s", base, slugSuffix())
		}
		var created *Workspace
		var err error
		if atomic {
			created, err = provisioner.InsertWorkspaceWithOwner(ctx, slug, name, settings, creator)
		} else {
			created, err = s.repo.InsertWorkspace(ctx, slug, name, settings)
		}
		if err != nil {
			if errors.Is(err, errSlugTaken) {
				continue
			}
			return nil, err
		}
		ws = created
		break
	}
	if ws == nil {
		return nil, ErrSlugExhausted
	}

	if !atomic {
		if err := s.authz.GrantOwner(ctx, creator, ws.ID); err != nil {
			if delErr := s.repo.DeleteWorkspace(ctx, ws.ID); delErr != nil {
				s.logger.Error("workspace rollback failed, orphaned row remains",
					"workspace_id", ws.ID, "error", delErr)
			}
			return nil, fmt.Errorf("grant owner: %w", err)
		}
	}

	s.emit(audit.Event{
		Name:        audit.EventWorkspaceCreated,
		Principal:   creator,
		WorkspaceID: ws.ID,
		Decision:    audit.DecisionAllow,
		Role:        string(authz.RoleOwner),
	})
	s.logger.Info("workspace created", "workspace_id", ws.ID, "slug", ws.Slug)
	return ws, nil
}

// Get returns a workspace the caller can read.
func (s *Service) Get(ctx context.Context, principal string, workspaceID int64) (*Workspace, error) {
	if _, err := s.authz.RequireAccess(ctx, principal, workspaceID, authz.CapRead); err != nil {
		return nil, err
	}
	return s.repo.GetWorkspace(ctx, workspaceID)
}

func (s *Service) UpdateSettings(ctx context.Context, principal string, workspaceID int64, settings map[string]string) error {
	if _, err := s.authz.RequireAccess(ctx, principal, workspaceID, authz.CapManage); err != nil {
		return err
	}
	return s.repo.UpdateSettings(ctx, workspaceID, settings)
}

func (s *Service) Rename(ctx context.Context, principal string, workspaceID int64, name string) error {
	if _, err := s.authz.RequireAccess(ctx, principal, workspaceID, authz.CapManage); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	return s.repo.Rename(ctx, workspaceID, name)
}

func (s *Service) emit(event audit.Event) {
	if s.audit != nil {
		s.audit.Emit(event)
	}
}
