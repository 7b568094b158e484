// Package authz resolves workspace access for externally authenticated
// principals and guards every tenant-scoped operation.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prismboard/prismboard/internal/audit"
	"github.com/prismboard/prismboard/internal/observability"
	"github.com/prismboard/prismboard/internal/platform/cache"
)

// RoleCacheTTL bounds how long a cached role may be served before an
// authoritative lookup is forced.
const RoleCacheTTL = 5 * time.Minute

// AuditSink receives access decisions without ever blocking them.
type AuditSink interface {
	Emit(event audit.Event)
}

// Service is the authorization core. It consults the cache engine for role
// lookups, the repository for the source of truth, and emits an audit event
// for every decision.
type Service struct {
	repo        Repository
	cache       *cache.Store
	audit       AuditSink
	metrics     *observability.Metrics
	logger      *slog.Logger
	superAdmins map[string]struct{}
	clock       func() time.Time
}

// NewService wires the authorization core. superAdmins is the fixed allow-list
// of principal ids that bypass membership lookup.
func NewService(repo Repository, store *cache.Store, sink AuditSink, metrics *observability.Metrics, logger *slog.Logger, superAdmins []string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	admins := make(map[string]struct{}, len(superAdmins))
	for _, id := range superAdmins {
		if id != "" {
			admins[id] = struct{}{}
		}
	}
	return &Service{
		repo:        repo,
		cache:       store,
		audit:       sink,
		metrics:     metrics,
		logger:      logger,
		superAdmins: admins,
		clock:       time.Now,
	}
}

// IsSuperAdmin reports whether the principal is on the override list.
func (s *Service) IsSuperAdmin(principal string) bool {
	_, ok := s.superAdmins[principal]
	return ok
}

func roleCacheKey(workspaceID int64, principal string) string {
	return fmt.Sprintf("authz:role:%d:%s", workspaceID, principal)
}

// ResolveAccess resolves (principal, workspace) to an access record, or nil
// when the principal has no standing in the workspace. The cache is advisory:
// a miss always triggers an authoritative lookup and is never read as "no
// access".
func (s *Service) ResolveAccess(ctx context.Context, principal string, workspaceID int64) (*Access, error) {
	if principal == "" {
		return nil, ErrUnauthenticated
	}

	if s.IsSuperAdmin(principal) {
		return s.resolveSuperAdmin(ctx, principal, workspaceID)
	}

	// A stale entry is deliberately treated as a miss: roles are bounded by
	// the hard TTL, never the serve-stale window used for dashboard data.
	if s.cache != nil {
		if value, meta := s.cache.GetWithMeta(roleCacheKey(workspaceID, principal)); !meta.Miss && !meta.Stale {
			if role, ok := value.(Role); ok {
				s.metrics.RoleCacheLookup("hit")
				return &Access{
					Principal:   principal,
					WorkspaceID: workspaceID,
					Role:        role,
					Permissions: PermissionsForRole(role),
				}, nil
			}
		}
		s.metrics.RoleCacheLookup("miss")
	}

	role, err := s.repo.MembershipRole(ctx, principal, workspaceID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			correlationID := uuid.NewString()
			s.metrics.AuthzDecision(audit.DecisionDeny)
			s.logger.Info("access denied",
				slog.String("correlation_id", correlationID),
				slog.String("principal", principal),
				slog.Int64("workspace_id", workspaceID),
				slog.String("reason", "no membership"),
			)
			s.emit(audit.Event{
				Name:        audit.EventAccessDenied,
				Principal:   principal,
				WorkspaceID: workspaceID,
				Decision:    audit.DecisionDeny,
				ErrorCode:   correlationID,
			})
			return nil, nil
		}
		return nil, fmt.Errorf("authz: resolve access: %w", err)
	}

	name, err := s.repo.WorkspaceName(ctx, workspaceID)
	if err != nil && !errors.Is(err, ErrWorkspaceNotFound) {
		return nil, fmt.Errorf("authz: resolve access: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(roleCacheKey(workspaceID, principal), role, RoleCacheTTL)
	}
	s.metrics.AuthzDecision(audit.DecisionAllow)
	s.emit(audit.Event{
		Name:        audit.EventAccessGranted,
		Principal:   principal,
		WorkspaceID: workspaceID,
		Decision:    audit.DecisionAllow,
		Role:        string(role),
	})
	return &Access{
		Principal:     principal,
		WorkspaceID:   workspaceID,
		WorkspaceName: name,
		Role:          role,
		Permissions:   PermissionsForRole(role),
	}, nil
}

// resolveSuperAdmin synthesizes an owner-equivalent access record for any
// existing workspace. Every bypass is audited on its own event name.
func (s *Service) resolveSuperAdmin(ctx context.Context, principal string, workspaceID int64) (*Access, error) {
	name, err := s.repo.WorkspaceName(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, ErrWorkspaceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("authz: resolve super admin: %w", err)
	}
	s.metrics.AuthzDecision(audit.DecisionAllow)
	s.emit(audit.Event{
		Name:        audit.EventSuperAdminAccess,
		Principal:   principal,
		WorkspaceID: workspaceID,
		Decision:    audit.DecisionAllow,
		Role:        string(RoleOwner),
	})
	return &Access{
		Principal:     principal,
		WorkspaceID:   workspaceID,
		WorkspaceName: name,
		Role:          RoleOwner,
		Permissions:   PermissionsForRole(RoleOwner),
		SuperAdmin:    true,
	}, nil
}

// RequireAccess resolves access and checks the named capability. Every
// failure mode surfaces as the same ErrAccessDenied so callers cannot
// distinguish a missing membership from a missing capability.
func (s *Service) RequireAccess(ctx context.Context, principal string, workspaceID int64, capability Capability) (*Access, error) {
	access, err := s.ResolveAccess(ctx, principal, workspaceID)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}
	if access == nil {
		return nil, ErrAccessDenied
	}
	if !access.Permissions.Has(capability) {
		// The denied capability stays in the log, tied to the audit row by
		// the correlation id; the event itself never varies per cause.
		correlationID := uuid.NewString()
		s.metrics.AuthzDecision(audit.DecisionDeny)
		s.logger.Info("access denied",
			slog.String("correlation_id", correlationID),
			slog.String("principal", principal),
			slog.Int64("workspace_id", workspaceID),
			slog.String("capability", string(capability)),
			slog.String("role", string(access.Role)),
		)
		s.emit(audit.Event{
			Name:        audit.EventAccessDenied,
			Principal:   principal,
			WorkspaceID: workspaceID,
			Decision:    audit.DecisionDeny,
			Role:        string(access.Role),
			ErrorCode:   correlationID,
		})
		return nil, ErrAccessDenied
	}
	return access, nil
}

// AddMember grants a role to a new member. Granting owner requires the actor
// to be an owner.
func (s *Service) AddMember(ctx context.Context, actor string, workspaceID int64, principal string, role Role) error {
	access, err := s.RequireAccess(ctx, actor, workspaceID, CapManage)
	if err != nil {
		return err
	}
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	if role == RoleOwner && access.Role != RoleOwner {
		return ErrOwnerGrant
	}
	if err := s.repo.InsertMembership(ctx, principal, workspaceID, role); err != nil {
		return err
	}
	s.invalidateRole(workspaceID, principal)
	s.emit(audit.Event{
		Name:        audit.EventMemberAdded,
		Principal:   actor,
		WorkspaceID: workspaceID,
		Decision:    audit.DecisionAllow,
		Target:      principal,
		Role:        string(role),
	})
	return nil
}

// UpdateRole changes an existing member's role, enforcing the self-mutation,
// owner-grant, and last-owner rules before the write.
func (s *Service) UpdateRole(ctx context.Context, actor string, workspaceID int64, principal string, newRole Role) error {
	access, err := s.RequireAccess(ctx, actor, workspaceID, CapManage)
	if err != nil {
		return err
	}
	if _, err := ParseRole(string(newRole)); err != nil {
		return err
	}
	if principal == actor {
		return ErrSelfMutation
	}

	current, err := s.repo.MembershipRole(ctx, principal, workspaceID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("authz: update role: %w", err)
	}
	if (newRole == RoleOwner || current == RoleOwner) && access.Role != RoleOwner {
		return ErrOwnerGrant
	}
	if current == RoleOwner && newRole != RoleOwner {
		if err := s.ensureNotLastOwner(ctx, workspaceID); err != nil {
			return err
		}
	}

	if err := s.repo.UpdateMembershipRole(ctx, principal, workspaceID, newRole); err != nil {
		return err
	}
	s.invalidateRole(workspaceID, principal)
	s.emit(audit.Event{
		Name:        audit.EventRoleUpdated,
		Principal:   actor,
		WorkspaceID: workspaceID,
		Decision:    audit.DecisionAllow,
		Target:      principal,
		Role:        string(newRole),
	})
	return nil
}

// RemoveMember deletes a membership, subject to the same rules as UpdateRole.
func (s *Service) RemoveMember(ctx context.Context, actor string, workspaceID int64, principal string) error {
	access, err := s.RequireAccess(ctx, actor, workspaceID, CapManage)
	if err != nil {
		return err
	}
	if principal == actor {
		return ErrSelfMutation
	}

	current, err := s.repo.MembershipRole(ctx, principal, workspaceID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("authz: remove member: %w", err)
	}
	if current == RoleOwner {
		if access.Role != RoleOwner {
			return ErrOwnerGrant
		}
		if err := s.ensureNotLastOwner(ctx, workspaceID); err != nil {
			return err
		}
	}

	if err := s.repo.DeleteMembership(ctx, principal, workspaceID); err != nil {
		return err
	}
	s.invalidateRole(workspaceID, principal)
	s.emit(audit.Event{
		Name:        audit.EventMemberRemoved,
		Principal:   actor,
		WorkspaceID: workspaceID,
		Decision:    audit.DecisionAllow,
		Target:      principal,
		Role:        string(current),
	})
	return nil
}

// ListMembers returns the workspace roster.
func (s *Service) ListMembers(ctx context.Context, actor string, workspaceID int64) ([]Membership, error) {
	if _, err := s.RequireAccess(ctx, actor, workspaceID, CapRead); err != nil {
		return nil, err
	}
	return s.repo.ListMemberships(ctx, workspaceID)
}

// GrantOwner provisions the creator's owner membership during workspace
// onboarding. No guard: the workspace has no members yet.
func (s *Service) GrantOwner(ctx context.Context, principal string, workspaceID int64) error {
	return s.repo.InsertMembership(ctx, principal, workspaceID, RoleOwner)
}

func (s *Service) ensureNotLastOwner(ctx context.Context, workspaceID int64) error {
	owners, err := s.repo.CountOwners(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("authz: count owners: %w", err)
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}

func (s *Service) invalidateRole(workspaceID int64, principal string) {
	if s.cache != nil {
		s.cache.Invalidate(roleCacheKey(workspaceID, principal))
	}
}

func (s *Service) emit(event audit.Event) {
	if s.audit == nil {
		return
	}
	event.At = s.clock().UTC()
	s.audit.Emit(event)
}
