// Package vaulthttp manages provider credentials over HTTP. Plaintext
// flows in on store and never flows out: reads return metadata only,
// decryption happens just-in-time inside the services that call
// providers.
package vaulthttp

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/prismboard/prismboard/internal/identity"
	"github.com/prismboard/prismboard/internal/platform/httpx"
	"github.com/prismboard/prismboard/internal/vault"
)

type Handler struct {
	logger    *slog.Logger
	service   *vault.Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *vault.Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/secrets", func(r chi.Router) {
		r.Get("/", h.listSecrets)
		r.Put("/{provider}", h.storeSecret)
		r.Delete("/{provider}", h.deleteSecret)
	})
}

type storeSecretRequest struct {
	Secret string `json:"secret" validate:"required,min=1,max=4096"`
}

func (h *Handler) storeSecret(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	provider, err := vault.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req storeSecretRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal := identity.PrincipalFromContext(r.Context())
	if err := h.service.Store(r.Context(), principal, workspaceID, provider, []byte(req.Secret)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteSecret(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	provider, err := vault.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal := identity.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), principal, workspaceID, provider); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSecrets(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	principal := identity.PrincipalFromContext(r.Context())
	metas, err := h.service.List(r.Context(), principal, workspaceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"secrets": metas})
}

func (h *Handler) workspaceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "workspaceID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Workspace", "workspace id must be a positive integer")
		return 0, false
	}
	return id, true
}
