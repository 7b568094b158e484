// Package identity carries the authenticated principal through request
// context. Authentication itself happens upstream; the gateway forwards
// the verified principal id in a trusted header.
package identity

import "context"

type principalContextKey struct{}

// WithPrincipal stores the principal id in context.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the principal id, empty when anonymous.
func PrincipalFromContext(ctx context.Context) string {
	principal, _ := ctx.Value(principalContextKey{}).(string)
	return principal
}
