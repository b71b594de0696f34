package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/telesite/telesite/internal/shared"
)

// Middleware wires authentication and role guards for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireRole ensures the current user holds at least one of the named
// roles. Unauthenticated requests and zero-role users are rejected.
func (m Middleware) RequireRole(names ...string) func(http.Handler) http.Handler {
	normalized := normalizeNames(names)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			held, err := m.Service.HasRole(r.Context(), userID, normalized...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require role", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !held {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without an authenticated user.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.UserIDFromContext(r.Context()); !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func normalizeNames(names []string) []string {
	unique := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(strings.ToLower(n))
		if n == "" {
			continue
		}
		unique[n] = struct{}{}
	}
	out := make([]string, 0, len(unique))
	for n := range unique {
		out = append(out, n)
	}
	return out
}
