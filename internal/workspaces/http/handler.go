// Package workspacehttp exposes workspace and membership management over
// a JSON API.
package workspacehttp

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/prismboard/prismboard/internal/authz"
	"github.com/prismboard/prismboard/internal/identity"
	"github.com/prismboard/prismboard/internal/platform/httpx"
	"github.com/prismboard/prismboard/internal/workspaces"
)

// Handler wires HTTP endpoints for workspaces and their members.
type Handler struct {
	logger    *slog.Logger
	service   *workspaces.Service
	members   *authz.Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *workspaces.Service, members *authz.Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		members:   members,
		validator: validator.New(),
	}
}

// MountRoutes registers workspace routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/workspaces", h.createWorkspace)
	r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
		r.Get("/", h.showWorkspace)
		r.Patch("/name", h.renameWorkspace)
		r.Put("/settings", h.updateSettings)

		r.Get("/members", h.listMembers)
		r.Post("/members", h.addMember)
		r.Patch("/members/{principal}", h.updateMemberRole)
		r.Delete("/members/{principal}", h.removeMember)
	})
}

type createWorkspaceRequest struct {
	Name     string            `json:"name" validate:"required,min=1,max=120"`
	Settings map[string]string `json:"settings"`
}

func (h *Handler) createWorkspace(w http.ResponseWriter, r *http.Request) {
	principal := identity.PrincipalFromContext(r.Context())
	var req createWorkspaceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ws, err := h.service.Create(r.Context(), principal, req.Name, req.Settings)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ws)
}

func (h *Handler) showWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	principal := identity.PrincipalFromContext(r.Context())
	ws, err := h.service.Get(r.Context(), principal, workspaceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws)
}

type renameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

func (h *Handler) renameWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal := identity.PrincipalFromContext(r.Context())
	if err := h.service.Rename(r.Context(), principal, workspaceID, req.Name); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsRequest struct {
	Settings map[string]string `json:"settings" validate:"required"`
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	var req settingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal := identity.PrincipalFromContext(r.Context())
	if err := h.service.UpdateSettings(r.Context(), principal, workspaceID, req.Settings); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	principal := identity.PrincipalFromContext(r.Context())
	members, err := h.members.ListMembers(r.Context(), principal, workspaceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": members})
}

type memberRequest struct {
	Principal string `json:"principal" validate:"required,min=1,max=200"`
	Role      string `json:"role" validate:"required"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := identity.PrincipalFromContext(r.Context())
	if err := h.members.AddMember(r.Context(), actor, workspaceID, req.Principal, role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := identity.PrincipalFromContext(r.Context())
	target := chi.URLParam(r, "principal")
	if err := h.members.UpdateRole(r.Context(), actor, workspaceID, target, role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	actor := identity.PrincipalFromContext(r.Context())
	target := chi.URLParam(r, "principal")
	if err := h.members.RemoveMember(r.Context(), actor, workspaceID, target); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) workspaceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "workspaceID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Workspace", "workspace id must be a positive integer")
		return 0, false
	}
	return id, true
}
