package identity

import (
	"net/http"
	"strings"
)

// PrincipalHeader is set by the edge gateway after it has verified the
// caller's credentials. The service trusts it only because the gateway
// strips the header from external traffic.
const PrincipalHeader = "X-Prism-Principal"

// Middleware lifts the forwarded principal into request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := strings.TrimSpace(r.Header.Get(PrincipalHeader))
		if principal != "" {
			r = r.WithContext(WithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}
