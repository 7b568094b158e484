// Package insightshttp serves the dashboard summary endpoint.
package insightshttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prismboard/prismboard/internal/identity"
	"github.com/prismboard/prismboard/internal/insights"
	"github.com/prismboard/prismboard/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *insights.Service
}

func NewHandler(logger *slog.Logger, service *insights.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/workspaces/{workspaceID}/insights/summary", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := strconv.ParseInt(chi.URLParam(r, "workspaceID"), 10, 64)
	if err != nil || workspaceID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Workspace", "workspace id must be a positive integer")
		return
	}

	var window insights.Window
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Window", "from must be RFC3339")
			return
		}
		window.From = from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Window", "to must be RFC3339")
			return
		}
		window.To = to
	}

	principal := identity.PrincipalFromContext(r.Context())
	summary, err := h.service.Summarize(r.Context(), principal, workspaceID, window)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
