package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prismboard/prismboard/internal/audit"
	"github.com/prismboard/prismboard/internal/authz"
	"github.com/prismboard/prismboard/internal/observability"
)

// Guard is the authorization surface the vault depends on. Every operation
// checks access before it touches ciphertext.
type Guard interface {
	RequireAccess(ctx context.Context, principal string, workspaceID int64, capability authz.Capability) (*authz.Access, error)
}

// AuditSink receives vault activity events.
type AuditSink interface {
	Emit(event audit.Event)
}

// Service implements just-in-time secret storage. Writes and deletes require
// the owner-only manage-keys capability; reads require plain read access so a
// member can exercise a feature backed by an owner-provisioned key without
// being able to see or change it.
type Service struct {
	repo    Repository
	guard   Guard
	cipher  *Cipher
	audit   AuditSink
	metrics *observability.Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

// NewService wires the vault. cipher may be nil when no encryption key is
// configured; every operation then fails closed with ErrUnavailable.
func NewService(repo Repository, guard Guard, cipher *Cipher, sink AuditSink, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		guard:   guard,
		cipher:  cipher,
		audit:   sink,
		metrics: metrics,
		logger:  logger,
		clock:   time.Now,
	}
}

// Enabled reports whether the vault holds a usable encryption key.
func (s *Service) Enabled() bool {
	return s != nil && s.cipher != nil
}

// Store encrypts and upserts a credential for (workspace, principal,
// provider). The previous value, if any, is replaced outright.
func (s *Service) Store(ctx context.Context, principal string, workspaceID int64, provider Provider, plaintext []byte) error {
	if _, err := s.guard.RequireAccess(ctx, principal, workspaceID, authz.CapManageKeys); err != nil {
		s.metrics.VaultOperation("store", "denied")
		return err
	}
	if !s.Enabled() {
		s.metrics.VaultOperation("store", "unavailable")
		return ErrUnavailable
	}
	if len(plaintext) == 0 {
		return ErrEmptySecret
	}
	if _, err := ParseProvider(string(provider)); err != nil {
		return err
	}

	ciphertext, err := s.cipher.Seal(plaintext)
	if err != nil {
		s.metrics.VaultOperation("store", "error")
		return fmt.Errorf("vault: store: %w", err)
	}
	fingerprint := Fingerprint(plaintext)
	if err := s.repo.UpsertSecret(ctx, workspaceID, principal, provider, ciphertext, fingerprint, EncryptionVersion); err != nil {
		s.metrics.VaultOperation("store", "error")
		return fmt.Errorf("vault: store: %w", err)
	}

	s.metrics.VaultOperation("store", "ok")
	s.emit(audit.Event{
		Name:        audit.EventSecretStored,
		Principal:   principal,
		WorkspaceID: workspaceID,
		Provider:    string(provider),
		Decision:    audit.DecisionAllow,
	})
	return nil
}

// Retrieve decrypts the stored credential and hands the plaintext to the
// immediate caller only. A missing record returns (nil, nil). The caller owns
// the returned buffer and should Wipe it as soon as its single use is done;
// nothing here or below retains a decrypted copy.
func (s *Service) Retrieve(ctx context.Context, principal string, workspaceID int64, provider Provider) ([]byte, error) {
	if _, err := s.guard.RequireAccess(ctx, principal, workspaceID, authz.CapRead); err != nil {
		s.metrics.VaultOperation("retrieve", "denied")
		return nil, err
	}
	if !s.Enabled() {
		s.metrics.VaultOperation("retrieve", "unavailable")
		return nil, ErrUnavailable
	}
	if _, err := ParseProvider(string(provider)); err != nil {
		return nil, err
	}

	ciphertext, _, err := s.repo.SecretCiphertext(ctx, workspaceID, principal, provider)
	if err != nil {
		if errors.Is(err, errSecretNotFound) {
			s.metrics.VaultOperation("retrieve", "absent")
			return nil, nil
		}
		s.metrics.VaultOperation("retrieve", "error")
		return nil, fmt.Errorf("vault: retrieve: %w", err)
	}

	plaintext, err := s.cipher.Open(ciphertext)
	if err != nil {
		// The concrete failure (tampered tag, wrong key version, truncation)
		// is recorded against a correlation id and never surfaced, to avoid
		// handing an oracle to whoever corrupted the ciphertext.
		correlationID := uuid.NewString()
		s.metrics.VaultOperation("retrieve", "decrypt_failed")
		s.logger.Error("vault decryption failed",
			slog.String("correlation_id", correlationID),
			slog.Int64("workspace_id", workspaceID),
			slog.String("provider", string(provider)),
		)
		s.emit(audit.Event{
			Name:        audit.EventDecryptionFailed,
			Principal:   principal,
			WorkspaceID: workspaceID,
			Provider:    string(provider),
			Decision:    audit.DecisionError,
			ErrorCode:   correlationID,
		})
		return nil, ErrDecryptionFailed
	}

	s.metrics.VaultOperation("retrieve", "ok")
	s.emit(audit.Event{
		Name:        audit.EventSecretRetrieved,
		Principal:   principal,
		WorkspaceID: workspaceID,
		Provider:    string(provider),
		Decision:    audit.DecisionAllow,
	})
	return plaintext, nil
}

// Delete removes the credential. Idempotent: deleting a record that was never
// stored succeeds.
func (s *Service) Delete(ctx context.Context, principal string, workspaceID int64, provider Provider) error {
	if _, err := s.guard.RequireAccess(ctx, principal, workspaceID, authz.CapManageKeys); err != nil {
		s.metrics.VaultOperation("delete", "denied")
		return err
	}
	if !s.Enabled() {
		s.metrics.VaultOperation("delete", "unavailable")
		return ErrUnavailable
	}
	if _, err := ParseProvider(string(provider)); err != nil {
		return err
	}

	if err := s.repo.DeleteSecret(ctx, workspaceID, principal, provider); err != nil {
		s.metrics.VaultOperation("delete", "error")
		return fmt.Errorf("vault: delete: %w", err)
	}
	s.metrics.VaultOperation("delete", "ok")
	s.emit(audit.Event{
		Name:        audit.EventSecretDeleted,
		Principal:   principal,
		WorkspaceID: workspaceID,
		Provider:    string(provider),
		Decision:    audit.DecisionAllow,
	})
	return nil
}

// List returns fingerprint metadata for the caller's stored credentials.
// Reading the roster needs only read access; it exposes nothing sensitive.
func (s *Service) List(ctx context.Context, principal string, workspaceID int64) ([]SecretMeta, error) {
	if _, err := s.guard.RequireAccess(ctx, principal, workspaceID, authz.CapRead); err != nil {
		return nil, err
	}
	return s.repo.ListSecrets(ctx, workspaceID, principal)
}

func (s *Service) emit(event audit.Event) {
	if s.audit == nil {
		return
	}
	event.At = s.clock().UTC()
	s.audit.Emit(event)
}
