// Package audit records access decisions and vault activity for forensic
// review. Events never contain secret material, only correlation metadata.
package audit

import "time"

// Event names emitted by the authorization core and the vault.
const (
	EventAccessGranted    = "access_granted"
	EventAccessDenied     = "access_denied"
	EventSuperAdminAccess = "super_admin_access"
	EventMemberAdded      = "member_added"
	EventMemberRemoved    = "member_removed"
	EventRoleUpdated      = "role_updated"
	EventWorkspaceCreated = "workspace_created"
	EventSecretStored     = "secret_stored"
	EventSecretDeleted    = "secret_deleted"
	EventSecretRetrieved  = "secret_retrieved"
	EventDecryptionFailed = "decryption_failed"
)

// Decision values attached to events.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
	DecisionError = "error"
)

// Event is a single append-only audit record. Principal is the acting
// identity; Target is set on membership mutations to name the affected one.
type Event struct {
	Name        string    `json:"name"`
	Principal   string    `json:"principal"`
	WorkspaceID int64     `json:"workspaceId"`
	Target      string    `json:"target,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Decision    string    `json:"decision"`
	Role        string    `json:"role,omitempty"`
	ErrorCode   string    `json:"errorCode,omitempty"`
	At          time.Time `json:"at"`
}

// Filters narrow a timeline query.
type Filters struct {
	WorkspaceID int64
	Principal   string
	Event       string
	From        time.Time
	To          time.Time
	Page        int
	PageSize    int
}

// Paging carries pagination metadata for a timeline page.
type Paging struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
}

// Page is one window of the audit timeline.
type Page struct {
	Events []Event `json:"events"`
	Paging Paging  `json:"paging"`
}
