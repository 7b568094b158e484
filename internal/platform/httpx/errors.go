package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/prismboard/prismboard/internal/authz"
	"github.com/prismboard/prismboard/internal/ingest"
	"github.com/prismboard/prismboard/internal/vault"
	"github.com/prismboard/prismboard/internal/workspaces"
)

// RespondError maps domain errors onto RFC7807 responses. Access denials
// share one fixed body regardless of cause so callers cannot probe for
// the existence of workspaces or memberships.
func RespondError(w http.ResponseWriter, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthenticated", "authentication required")
	case errors.Is(err, authz.ErrAccessDenied):
		Problem(w, http.StatusForbidden, "Access Denied", "access denied")
	case errors.Is(err, vault.ErrDecryptionFailed):
		Problem(w, http.StatusInternalServerError, "Decryption Failed", "decryption failed")
	case errors.Is(err, vault.ErrUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Vault Unavailable", "secret storage is not configured")
	case errors.Is(err, ingest.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Delivery", err.Error())
	case errors.Is(err, workspaces.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case isRuleRejection(err):
		Problem(w, http.StatusUnprocessableEntity, "Rule Rejected", err.Error())
	case errors.As(err, &verr):
		Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// isRuleRejection covers business rules that deliberately carry a
// specific reason, unlike the uniform denial above.
func isRuleRejection(err error) bool {
	for _, rule := range []error{
		authz.ErrInvalidRole,
		authz.ErrSelfMutation,
		authz.ErrOwnerGrant,
		authz.ErrLastOwner,
		authz.ErrMemberExists,
		authz.ErrMemberNotFound,
		workspaces.ErrNameRequired,
		workspaces.ErrSlugExhausted,
		vault.ErrEmptySecret,
		vault.ErrUnknownProvider,
		ingest.ErrKeyRequired,
		ingest.ErrPayloadRequired,
	} {
		if errors.Is(err, rule) {
			return true
		}
	}
	return false
}
