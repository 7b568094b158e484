// Package vault stores per-workspace provider credentials encrypted at rest
// and decrypts them just in time for use. Plaintext is never cached or
// logged at any layer.
package vault

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies which third-party service a credential belongs to.
type Provider string

// Supported credential providers.
const (
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderAnthropic  Provider = "anthropic"
)

// ParseProvider validates a provider name supplied by a caller.
func ParseProvider(value string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(value))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderOpenRouter:
		return ProviderOpenRouter, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, value)
	}
}

// SecretMeta is the display projection of a stored secret: everything except
// the secret itself.
type SecretMeta struct {
	WorkspaceID int64     `json:"workspaceId"`
	Principal   string    `json:"principal"`
	Provider    Provider  `json:"provider"`
	Fingerprint string    `json:"fingerprint"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
