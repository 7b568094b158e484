package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prismboard/prismboard/internal/platform/db"
)

// Repository defines the datastore surface the authorization core needs. The
// datastore owns the (principal, workspace) uniqueness invariant.
type Repository interface {
	MembershipRole(ctx context.Context, principal string, workspaceID int64) (Role, error)
	InsertMembership(ctx context.Context, principal string, workspaceID int64, role Role) error
	UpdateMembershipRole(ctx context.Context, principal string, workspaceID int64, role Role) error
	DeleteMembership(ctx context.Context, principal string, workspaceID int64) error
	ListMemberships(ctx context.Context, workspaceID int64) ([]Membership, error)
	CountOwners(ctx context.Context, workspaceID int64) (int, error)
	WorkspaceName(ctx context.Context, workspaceID int64) (string, error)
}

// PGRepository provides PostgreSQL backed persistence for memberships.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// MembershipRole returns the role for the pair, or ErrNoMembership.
func (r *PGRepository) MembershipRole(ctx context.Context, principal string, workspaceID int64) (Role, error) {
	var role string
	err := r.pool.QueryRow(ctx,
		`SELECT role FROM memberships WHERE principal = $1 AND workspace_id = $2`,
		principal, workspaceID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoMembership
		}
		return "", err
	}
	return Role(role), nil
}

// InsertMembership adds a member. A duplicate pair maps to ErrMemberExists.
func (r *PGRepository) InsertMembership(ctx context.Context, principal string, workspaceID int64, role Role) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO memberships (principal, workspace_id, role, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())`,
		principal, workspaceID, string(role))
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrMemberExists
		}
		return err
	}
	return nil
}

// UpdateMembershipRole replaces the role for an existing pair.
func (r *PGRepository) UpdateMembershipRole(ctx context.Context, principal string, workspaceID int64, role Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE memberships SET role = $3, updated_at = NOW() WHERE principal = $1 AND workspace_id = $2`,
		principal, workspaceID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// DeleteMembership removes the pair.
func (r *PGRepository) DeleteMembership(ctx context.Context, principal string, workspaceID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM memberships WHERE principal = $1 AND workspace_id = $2`,
		principal, workspaceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// ListMemberships returns the workspace roster ordered by join time.
func (r *PGRepository) ListMemberships(ctx context.Context, workspaceID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT principal, workspace_id, role, created_at, updated_at
		 FROM memberships WHERE workspace_id = $1 ORDER BY created_at, principal`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		var role string
		if err := rows.Scan(&m.Principal, &m.WorkspaceID, &role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

// CountOwners counts owner rows for the last-owner invariant.
func (r *PGRepository) CountOwners(ctx context.Context, workspaceID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memberships WHERE workspace_id = $1 AND role = $2`,
		workspaceID, string(RoleOwner)).Scan(&count)
	return count, err
}

// WorkspaceName resolves a workspace display name, doubling as an existence
// check for the super-admin path.
func (r *PGRepository) WorkspaceName(ctx context.Context, workspaceID int64) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM workspaces WHERE id = $1`, workspaceID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrWorkspaceNotFound
		}
		return "", err
	}
	return name, nil
}
