package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptionVersion tags ciphertext with the scheme that produced it.
const EncryptionVersion = 1

// KeySize is the required length of the key-encryption key.
const KeySize = chacha20poly1305.KeySize

// ErrKeyInvalid indicates the configured encryption key is missing or not a
// 32-byte value.
var ErrKeyInvalid = errors.New("vault: encryption key must be 32 bytes")

// ParseKey decodes VAULT_ENCRYPTION_KEY from hex or base64. An empty string
// returns ErrKeyInvalid; the vault fails closed without a key.
func ParseKey(value string) ([]byte, error) {
	if value == "" {
		return nil, ErrKeyInvalid
	}
	if key, err := hex.DecodeString(value); err == nil && len(key) == KeySize {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(value); err == nil && len(key) == KeySize {
		return key, nil
	}
	if key, err := base64.RawStdEncoding.DecodeString(value); err == nil && len(key) == KeySize {
		return key, nil
	}
	return nil, ErrKeyInvalid
}

// Cipher seals and opens secret material with an authenticated scheme. Each
// Seal draws a fresh random nonce; ciphertext layout is
// version(1) || nonce || sealed.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeyInvalid
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: nonce: %w", err)
	}
	out := make([]byte, 1+len(nonce), 1+len(nonce)+len(plaintext)+c.aead.Overhead())
	out[0] = EncryptionVersion
	copy(out[1:], nonce)
	return c.aead.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal. Callers must not surface the
// returned error detail; it feeds the audit trail only.
func (c *Cipher) Open(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < 1+nonceSize+c.aead.Overhead() {
		return nil, errors.New("vault: ciphertext truncated")
	}
	if ciphertext[0] != EncryptionVersion {
		return nil, fmt.Errorf("vault: unknown encryption version %d", ciphertext[0])
	}
	nonce := ciphertext[1 : 1+nonceSize]
	return c.aead.Open(nil, nonce, ciphertext[1+nonceSize:], nil)
}

// Fingerprint derives the short display hash for a secret. One way only:
// it can correlate a stored key on screen, never recover it.
func Fingerprint(plaintext []byte) string {
	sum := sha256.Sum256(plaintext)
	return "sha256:" + hex.EncodeToString(sum[:8])
}

// Wipe zeroes a plaintext buffer once the caller is done with it.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
