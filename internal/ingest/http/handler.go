// Package ingesthttp exposes the webhook delivery endpoint.
package ingesthttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/prismboard/prismboard/internal/identity"
	"github.com/prismboard/prismboard/internal/ingest"
	"github.com/prismboard/prismboard/internal/platform/httpx"
)

// IdempotencyKeyHeader carries the provider's delivery id.
const IdempotencyKeyHeader = "X-Idempotency-Key"

type Handler struct {
	logger    *slog.Logger
	service   *ingest.Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *ingest.Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/events", func(r chi.Router) {
		r.Post("/", h.acceptEvent)
		r.Get("/", h.listEvents)
	})
}

type eventRequest struct {
	Source  string          `json:"source" validate:"required,min=1,max=100"`
	Kind    string          `json:"kind" validate:"required,min=1,max=100"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

func (h *Handler) acceptEvent(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	key := r.Header.Get(IdempotencyKeyHeader)
	var req eventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal := identity.PrincipalFromContext(r.Context())
	event, err := h.service.Accept(r.Context(), principal, workspaceID, key, req.Source, req.Kind, req.Payload)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, event)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	principal := identity.PrincipalFromContext(r.Context())
	events, err := h.service.Recent(r.Context(), principal, workspaceID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) workspaceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "workspaceID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Workspace", "workspace id must be a positive integer")
		return 0, false
	}
	return id, true
}
