package vault

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the datastore surface for encrypted secrets.
type Repository interface {
	UpsertSecret(ctx context.Context, workspaceID int64, principal string, provider Provider, ciphertext []byte, fingerprint string, version int) error
	SecretCiphertext(ctx context.Context, workspaceID int64, principal string, provider Provider) ([]byte, int, error)
	DeleteSecret(ctx context.Context, workspaceID int64, principal string, provider Provider) error
	ListSecrets(ctx context.Context, workspaceID int64, principal string) ([]SecretMeta, error)
}

// errSecretNotFound stays internal: the service translates absence into a
// nil result, not an error.
var errSecretNotFound = errors.New("vault: secret not found")

// PGRepository provides PostgreSQL backed persistence for secrets.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// UpsertSecret writes the record for (workspace, principal, provider),
// replacing any previous version. Last write wins; no history is kept.
func (r *PGRepository) UpsertSecret(ctx context.Context, workspaceID int64, principal string, provider Provider, ciphertext []byte, fingerprint string, version int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO secrets (workspace_id, principal, provider, ciphertext, fingerprint, encryption_version, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (workspace_id, principal, provider)
		 DO UPDATE SET ciphertext = EXCLUDED.ciphertext,
		               fingerprint = EXCLUDED.fingerprint,
		               encryption_version = EXCLUDED.encryption_version,
		               updated_at = NOW()`,
		workspaceID, principal, string(provider), ciphertext, fingerprint, version)
	return err
}

// SecretCiphertext fetches the stored ciphertext and its encryption version.
func (r *PGRepository) SecretCiphertext(ctx context.Context, workspaceID int64, principal string, provider Provider) ([]byte, int, error) {
	var (
		ciphertext []byte
		version    int
	)
	err := r.pool.QueryRow(ctx,
		`SELECT ciphertext, encryption_version FROM secrets
		 WHERE workspace_id = $1 AND principal = $2 AND provider = $3`,
		workspaceID, principal, string(provider)).Scan(&ciphertext, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, errSecretNotFound
		}
		return nil, 0, err
	}
	return ciphertext, version, nil
}

// DeleteSecret removes the record. Deleting a missing record is a no-op.
func (r *PGRepository) DeleteSecret(ctx context.Context, workspaceID int64, principal string, provider Provider) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM secrets WHERE workspace_id = $1 AND principal = $2 AND provider = $3`,
		workspaceID, principal, string(provider))
	return err
}

// ListSecrets returns display metadata for the principal's stored secrets.
func (r *PGRepository) ListSecrets(ctx context.Context, workspaceID int64, principal string) ([]SecretMeta, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT workspace_id, principal, provider, fingerprint, encryption_version, updated_at
		 FROM secrets WHERE workspace_id = $1 AND principal = $2 ORDER BY provider`,
		workspaceID, principal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []SecretMeta
	for rows.Next() {
		var meta SecretMeta
		var provider string
		if err := rows.Scan(&meta.WorkspaceID, &meta.Principal, &provider, &meta.Fingerprint, &meta.Version, &meta.UpdatedAt); err != nil {
			return nil, err
		}
		meta.Provider = Provider(provider)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}
