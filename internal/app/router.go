package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telesite/telesite/internal/auth"
	"github.com/telesite/telesite/internal/notifications"
	"github.com/telesite/telesite/internal/observability"
	"github.com/telesite/telesite/internal/projects"
	"github.com/telesite/telesite/internal/rbac"
	"github.com/telesite/telesite/internal/roles"
	"github.com/telesite/telesite/internal/shared"
	"github.com/telesite/telesite/internal/surveys"
	"github.com/telesite/telesite/internal/users"
	"github.com/telesite/telesite/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	Sessions             *shared.SessionStore
	AuthHandler          *auth.Handler
	RolesHandler         *roles.Handler
	UsersHandler         *users.Handler
	ProjectsHandler      *projects.Handler
	RBACHandler          *rbac.Handler
	SurveysHandler       *surveys.Handler
	NotificationsHandler *notifications.Handler
	JobHandler           *jobs.Handler
	RBACMiddleware       rbac.Middleware
	Pool                 *pgxpool.Pool
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAuth)
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/projects", params.ProjectsHandler.MountRoutes)
		r.Route("/rbac", params.RBACHandler.MountRoutes)
		r.Route("/surveys", params.SurveysHandler.MountRoutes)
		r.Route("/notifications", params.NotificationsHandler.MountRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireRole(roles.NameAdmin))
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
