// Package workspaces owns the tenant entity: creation with owner
// provisioning, settings, and name resolution.
package workspaces

import (
	"errors"
	"time"
)

// Workspace is an isolated customer account. All permissions and data are
// scoped to one.
type Workspace struct {
	ID        int64             `json:"id"`
	Slug      string            `json:"slug"`
	Name      string            `json:"name"`
	Settings  map[string]string `json:"settings"`
	CreatedAt time.Time         `json:"createdAt"`
}

var (
	// ErrNotFound indicates the workspace does not exist.
	ErrNotFound = errors.New("workspace not found")
	// ErrNameRequired rejects creation without a display name.
	ErrNameRequired = errors.New("workspace name required")
	// ErrSlugExhausted indicates slug collision retries ran out.
	ErrSlugExhausted = errors.New("workspaces: could not allocate a unique slug")
)
