package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismboard/prismboard/internal/authz"
	"github.com/prismboard/prismboard/internal/ingest"
	"github.com/prismboard/prismboard/internal/vault"
	"github.com/prismboard/prismboard/internal/workspaces"
)

func respond(t *testing.T, err error) (int, ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	RespondError(rec, err)
	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

// ---------------------------------------------------------------------------
// Denial uniformity
// ---------------------------------------------------------------------------

func TestAccessDenialsShareOneBody(t *testing.T) {
	causes := []error{
		authz.ErrAccessDenied,
		fmt.Errorf("workspace 42: %w", authz.ErrAccessDenied),
		fmt.Errorf("no membership for alice: %w", authz.ErrAccessDenied),
	}

	first := ProblemDetail{}
	for i, cause := range causes {
		status, body := respond(t, cause)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "access denied", body.Detail)
		if i == 0 {
			first = body
			continue
		}
		assert.Equal(t, first, body, "denial body must not vary with the cause")
	}
}

func TestDecryptionFailuresShareOneBody(t *testing.T) {
	status, body := respond(t, vault.ErrDecryptionFailed)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "decryption failed", body.Detail)

	wrappedStatus, wrappedBody := respond(t, fmt.Errorf("retrieve slack: %w", vault.ErrDecryptionFailed))
	assert.Equal(t, status, wrappedStatus)
	assert.Equal(t, body, wrappedBody)
}

// ---------------------------------------------------------------------------
// Specific mappings
// ---------------------------------------------------------------------------

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unauthenticated", authz.ErrUnauthenticated, http.StatusUnauthorized},
		{"vault unavailable", vault.ErrUnavailable, http.StatusServiceUnavailable},
		{"duplicate delivery", ingest.ErrIdempotencyConflict, http.StatusConflict},
		{"workspace missing", workspaces.ErrNotFound, http.StatusNotFound},
		{"last owner", authz.ErrLastOwner, http.StatusUnprocessableEntity},
		{"self mutation", authz.ErrSelfMutation, http.StatusUnprocessableEntity},
		{"empty secret", vault.ErrEmptySecret, http.StatusUnprocessableEntity},
		{"slug exhausted", workspaces.ErrSlugExhausted, http.StatusUnprocessableEntity},
		{"unknown", errors.New("pool exhausted"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := respond(t, tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.status, body.Status)
		})
	}
}

func TestInternalErrorsLeakNoDetail(t *testing.T) {
	_, body := respond(t, errors.New("dial tcp 10.0.0.4:5432: connection refused"))
	assert.Empty(t, body.Detail)
}
