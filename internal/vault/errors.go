package vault

import "errors"

var (
	// ErrUnavailable indicates the vault is running without a valid
	// encryption key. Every operation fails closed; nothing falls back to an
	// unencrypted store.
	ErrUnavailable = errors.New("vault: not configured")

	// ErrDecryptionFailed is the uniform decryption outcome. The concrete
	// cryptographic reason goes to the audit trail under a correlation id,
	// never to the caller.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrEmptySecret rejects storing an empty credential.
	ErrEmptySecret = errors.New("vault: secret must not be empty")

	// ErrUnknownProvider rejects providers outside the closed enum.
	ErrUnknownProvider = errors.New("unknown provider")
)
