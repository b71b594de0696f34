package surveys

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/shared"
)

// Handler manages survey workflow endpoints. Authorization is per
// transition, evaluated inside the service, so no role middleware sits in
// front of these routes beyond authentication.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers survey routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{sessionID}", h.get)
	r.Get("/{sessionID}/transitions/{target}", h.evaluate)
	r.Post("/{sessionID}/transitions", h.apply)
	r.Post("/{sessionID}/rework", h.requestRework)
	r.Put("/{sessionID}/assignee", h.assign)
}

type createSurveyPayload struct {
	SiteID     string `json:"site_id" validate:"required,min=1,max=64"`
	Project    string `json:"project" validate:"required,min=1,max=120"`
	AssignedTo *int64 `json:"assigned_to,omitempty" validate:"omitempty,gt=0"`
}

type transitionPayload struct {
	Target string `json:"target" validate:"required,min=1,max=64"`
}

type assignPayload struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "project query parameter required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	page := shared.Pagination{Limit: shared.ClampLimit(limit, 20, 100), Offset: shared.ClampOffset(offset)}
	items, total, err := h.service.List(r.Context(), project, page.Limit, page.Offset)
	if err != nil {
		h.logger.Error("list surveys", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Survey{}
	}
	page.Total = total
	httpx.JSON(w, http.StatusOK, map[string]any{"surveys": items, "pagination": page})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "session id must be a UUID")
		return
	}
	survey, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, survey)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var payload createSurveyPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	survey, err := h.service.Create(r.Context(), userID, payload.SiteID, payload.Project, payload.AssignedTo)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, survey)
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sessionID, ok := pathSessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "session id must be a UUID")
		return
	}
	decision, err := h.service.EvaluateTransition(r.Context(), userID, sessionID, chi.URLParam(r, "target"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sessionID, ok := pathSessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "session id must be a UUID")
		return
	}
	var payload transitionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	survey, err := h.service.ApplyTransition(r.Context(), userID, sessionID, payload.Target)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, survey)
}

func (h *Handler) requestRework(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sessionID, ok := pathSessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "session id must be a UUID")
		return
	}
	survey, err := h.service.RequestRework(r.Context(), userID, sessionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, survey)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sessionID, ok := pathSessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "session id must be a UUID")
		return
	}
	var payload assignPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	survey, err := h.service.Assign(r.Context(), userID, sessionID, payload.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, survey)
}

func pathSessionID(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "sessionID")
	if _, err := uuid.Parse(raw); err != nil {
		return "", false
	}
	return raw, true
}
