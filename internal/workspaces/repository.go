package workspaces

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prismboard/prismboard/internal/authz"
	"github.com/prismboard/prismboard/internal/platform/db"
)

var errSlugTaken = errors.New("workspaces: slug already taken")

// Repository abstracts workspace persistence so the service can be
// tested against an in-memory double.
type Repository interface {
	InsertWorkspace(ctx context.Context, slug, name string, settings map[string]string) (*Workspace, error)
	DeleteWorkspace(ctx context.Context, id int64) error
	GetWorkspace(ctx context.Context, id int64) (*Workspace, error)
	GetWorkspaceBySlug(ctx context.Context, slug string) (*Workspace, error)
	UpdateSettings(ctx context.Context, id int64, settings map[string]string) error
	Rename(ctx context.Context, id int64, name string) error
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) InsertWorkspace(ctx context.Context, slug, name string, settings map[string]string) (*Workspace, error) {
	if settings == nil {
		settings = map[string]string{}
	}
	ws := &Workspace{Slug: slug, Name: name, Settings: settings}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO workspaces (slug, name, settings, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, created_at`,
		slug, name, settings,
	).Scan(&ws.ID, &ws.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "workspaces_slug_key") {
			return nil, errSlugTaken
		}
		return nil, err
	}
	return ws, nil
}

// InsertWorkspaceWithOwner creates the workspace row and its first owner
// membership in one transaction, so a failure between the two writes can
// never leave an ownerless workspace behind.
func (r *PGRepository) InsertWorkspaceWithOwner(ctx context.Context, slug, name string, settings map[string]string, owner string) (*Workspace, error) {
	if settings == nil {
		settings = map[string]string{}
	}
	ws := &Workspace{Slug: slug, Name: name, Settings: settings}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO workspaces (slug, name, settings, created_at)
			VALUES ($1, $2, $3, now())
			RETURNING id, created_at`,
			slug, name, settings,
		).Scan(&ws.ID, &ws.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO memberships (principal, workspace_id, role, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())`,
			owner, ws.ID, string(authz.RoleOwner))
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err, "workspaces_slug_key") {
			return nil, errSlugTaken
		}
		return nil, err
	}
	return ws, nil
}

func (r *PGRepository) DeleteWorkspace(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	return err
}

func (r *PGRepository) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, slug, name, settings, created_at
		FROM workspaces WHERE id = $1`, id))
}

func (r *PGRepository) GetWorkspaceBySlug(ctx context.Context, slug string) (*Workspace, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, slug, name, settings, created_at
		FROM workspaces WHERE slug = $1`, slug))
}

func (r *PGRepository) UpdateSettings(ctx context.Context, id int64, settings map[string]string) error {
	if settings == nil {
		settings = map[string]string{}
	}
	tag, err := r.pool.Exec(ctx, `UPDATE workspaces SET settings = $2 WHERE id = $1`, id, settings)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) Rename(ctx context.Context, id int64, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE workspaces SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) scanOne(row pgx.Row) (*Workspace, error) {
	var ws Workspace
	var createdAt time.Time
	if err := row.Scan(&ws.ID, &ws.Slug, &ws.Name, &ws.Settings, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ws.CreatedAt = createdAt
	return &ws, nil
}
