package projects

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/roles"
	"github.com/telesite/telesite/internal/shared"
)

// Guard builds a middleware requiring one of the named roles.
type Guard func(roleNames ...string) func(http.Handler) http.Handler

// Handler manages project endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	requireRole Guard
	validator   *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, requireRole Guard) *Handler {
	return &Handler{logger: logger, service: service, requireRole: requireRole, validator: validator.New()}
}

// MountRoutes registers project routes. Mutations are restricted to
// admins and coordinators.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireRole(roles.NameAdmin, roles.NameCoordinator))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/members", h.listMembers)
		r.Post("/", h.create)
		r.Delete("/{id}", h.deactivate)
		r.Post("/{id}/members", h.assignMember)
		r.Delete("/{id}/members/{userID}", h.removeMember)
	})
}

type createProjectPayload struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=500"`
}

type assignMemberPayload struct {
	UserID        int64                     `json:"user_id" validate:"required,gt=0"`
	RoleInProject string                    `json:"role_in_project" validate:"max=64"`
	Permissions   *roles.PermissionDocument `json:"permissions,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projects": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "project id must be numeric")
		return
	}
	project, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createProjectPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID, _ := shared.UserIDFromContext(r.Context())
	project, err := h.service.Create(r.Context(), actorID, payload.Name, payload.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "project id must be numeric")
		return
	}
	actorID, _ := shared.UserIDFromContext(r.Context())
	if err := h.service.Deactivate(r.Context(), actorID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "project id must be numeric")
		return
	}
	members, err := h.service.ListMembers(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) assignMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "project id must be numeric")
		return
	}
	var payload assignMemberPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var assignedBy *int64
	if actor, found := shared.UserIDFromContext(r.Context()); found {
		assignedBy = &actor
	}
	if err := h.service.AssignMember(r.Context(), payload.UserID, id, assignedBy, payload.RoleInProject, payload.Permissions); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	userID, ok2 := pathID(r, "userID")
	if !ok || !ok2 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ids must be numeric")
		return
	}
	var removedBy *int64
	if actor, found := shared.UserIDFromContext(r.Context()); found {
		removedBy = &actor
	}
	if err := h.service.RemoveMember(r.Context(), userID, id, removedBy); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
