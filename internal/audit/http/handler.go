// Package audithttp serves the per-workspace audit timeline.
package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prismboard/prismboard/internal/audit"
	"github.com/prismboard/prismboard/internal/authz"
	"github.com/prismboard/prismboard/internal/identity"
	"github.com/prismboard/prismboard/internal/platform/httpx"
)

// Guard is the slice of the authorization core the timeline needs.
type Guard interface {
	RequireAccess(ctx context.Context, principal string, workspaceID int64, capability authz.Capability) (*authz.Access, error)
}

type Handler struct {
	logger  *slog.Logger
	service *audit.Service
	guard   Guard
}

func NewHandler(logger *slog.Logger, service *audit.Service, guard Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/workspaces/{workspaceID}/audit", h.timeline)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := strconv.ParseInt(chi.URLParam(r, "workspaceID"), 10, 64)
	if err != nil || workspaceID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Workspace", "workspace id must be a positive integer")
		return
	}

	principal := identity.PrincipalFromContext(r.Context())
	if _, err := h.guard.RequireAccess(r.Context(), principal, workspaceID, authz.CapManage); err != nil {
		httpx.RespondError(w, err)
		return
	}

	filters := audit.Filters{WorkspaceID: workspaceID}
	q := r.URL.Query()
	filters.Principal = q.Get("principal")
	filters.Event = q.Get("event")
	if raw := q.Get("from"); raw != "" {
		if from, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.From = from
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.To = to
		}
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("pageSize"))

	page, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}
