package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/roles"
	"github.com/telesite/telesite/internal/shared"
)

// Handler exposes binding management and permission summaries.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers rbac routes. Binding mutation is admin-only; the
// permission summary is readable by any authenticated user for itself.
func (h *Handler) MountRoutes(r chi.Router) {
	mw := Middleware{Service: h.service, Logger: h.logger}
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth)
		r.Get("/me/permissions", h.myPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireRole(roles.NameAdmin))
		r.Get("/users/{id}/roles", h.listGrants)
		r.Get("/users/{id}/permissions", h.userPermissions)
		r.Post("/users/{id}/roles/{roleID}", h.assign)
		r.Delete("/users/{id}/roles/{roleID}", h.remove)
	})
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	summary, err := h.service.UserPermissions(r.Context(), userID)
	if err != nil {
		h.logger.Error("permission summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user id must be numeric")
		return
	}
	summary, err := h.service.UserPermissions(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user id must be numeric")
		return
	}
	grants, err := h.service.ListGrants(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	roleID, ok2 := pathID(r, "roleID")
	if !ok || !ok2 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ids must be numeric")
		return
	}
	var assignedBy *int64
	if actor, found := shared.UserIDFromContext(r.Context()); found {
		assignedBy = &actor
	}
	if err := h.service.Assign(r.Context(), userID, roleID, assignedBy); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	roleID, ok2 := pathID(r, "roleID")
	if !ok || !ok2 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ids must be numeric")
		return
	}
	var removedBy *int64
	if actor, found := shared.UserIDFromContext(r.Context()); found {
		removedBy = &actor
	}
	if err := h.service.Remove(r.Context(), userID, roleID, removedBy); err != nil {
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
