package authz

import (
	"fmt"
	"strings"
	"time"
)

// Role is the single role a principal holds inside a workspace.
type Role string

// Workspace roles, from most to least privileged.
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ParseRole validates a role name supplied by a caller.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMember:
		return RoleMember, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, value)
	}
}

// Capability names one boolean permission derived from a role.
type Capability string

const (
	CapRead       Capability = "read"
	CapWrite      Capability = "write"
	CapManage     Capability = "manage"
	CapManageKeys Capability = "manage_keys"
	CapDelete     Capability = "delete"
)

// Permissions is the capability set derived from a role. It carries no
// persisted state of its own.
type Permissions struct {
	CanRead       bool `json:"canRead"`
	CanWrite      bool `json:"canWrite"`
	CanManage     bool `json:"canManage"`
	CanManageKeys bool `json:"canManageKeys"`
	CanDelete     bool `json:"canDelete"`
}

// PermissionsForRole maps a role to its fixed capability set. CanManageKeys is
// owner-only: an admin may change workspace settings but must never touch
// stored credentials.
func PermissionsForRole(role Role) Permissions {
	switch role {
	case RoleOwner:
		return Permissions{CanRead: true, CanWrite: true, CanManage: true, CanManageKeys: true, CanDelete: true}
	case RoleAdmin:
		return Permissions{CanRead: true, CanWrite: true, CanManage: true, CanDelete: true}
	case RoleMember:
		return Permissions{CanRead: true, CanWrite: true}
	case RoleViewer:
		return Permissions{CanRead: true}
	default:
		return Permissions{}
	}
}

// Has reports whether the named capability is granted.
func (p Permissions) Has(cap Capability) bool {
	switch cap {
	case CapRead:
		return p.CanRead
	case CapWrite:
		return p.CanWrite
	case CapManage:
		return p.CanManage
	case CapManageKeys:
		return p.CanManageKeys
	case CapDelete:
		return p.CanDelete
	default:
		return false
	}
}

// Membership is the persisted (principal, workspace, role) tuple. The
// datastore enforces uniqueness per (principal, workspace).
type Membership struct {
	Principal   string    `json:"principal"`
	WorkspaceID int64     `json:"workspaceId"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Access is the verdict for one (principal, workspace) resolution. The
// workspace name is best effort: cache-served verdicts carry an empty name.
type Access struct {
	Principal     string      `json:"principal"`
	WorkspaceID   int64       `json:"workspaceId"`
	WorkspaceName string      `json:"workspaceName,omitempty"`
	Role          Role        `json:"role"`
	Permissions   Permissions `json:"permissions"`
	SuperAdmin    bool        `json:"superAdmin,omitempty"`
}
