package authz

import "errors"

var (
	// ErrAccessDenied is the uniform denial. It intentionally does not say
	// whether the principal is unknown, lacks membership, or lacks the
	// capability; distinguishing those would aid workspace enumeration.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnauthenticated indicates no principal was supplied. RequireAccess
	// folds this into ErrAccessDenied before it reaches a caller.
	ErrUnauthenticated = errors.New("authz: unauthenticated")

	// ErrWorkspaceNotFound indicates the workspace id does not exist.
	ErrWorkspaceNotFound = errors.New("authz: workspace not found")

	// ErrNoMembership indicates no row for the (principal, workspace) pair.
	ErrNoMembership = errors.New("authz: no membership")
)

// Business-rule rejections. Unlike ErrAccessDenied these carry a specific,
// user-facing reason: they are management mistakes, not security probes.
var (
	ErrInvalidRole    = errors.New("invalid role")
	ErrSelfMutation   = errors.New("cannot change your own membership; ask another owner or admin")
	ErrOwnerGrant     = errors.New("only an owner may grant or revoke the owner role")
	ErrLastOwner      = errors.New("workspace must retain at least one owner")
	ErrMemberExists   = errors.New("principal is already a member of this workspace")
	ErrMemberNotFound = errors.New("principal is not a member of this workspace")
)
