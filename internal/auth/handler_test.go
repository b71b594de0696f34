package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/telesite/telesite/internal/shared"
	"github.com/telesite/telesite/internal/users"
)

type memoryUserStore struct {
	byEmail map[string]users.User
}

func (m memoryUserStore) FindByEmail(_ context.Context, email string) (users.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return user, nil
}

func newAuthRouter(t *testing.T) (http.Handler, *shared.SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionStore(client, time.Hour)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	store := memoryUserStore{byEmail: map[string]users.User{
		"active@telesite.local":   {ID: 1, Email: "active@telesite.local", PasswordHash: string(hash), IsActive: true},
		"disabled@telesite.local": {ID: 2, Email: "disabled@telesite.local", PasswordHash: string(hash), IsActive: false},
	}}

	handler := NewHandler(slog.Default(), NewService(store), sessions)
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, sessions
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginIssuesBearerToken(t *testing.T) {
	router, sessions := newAuthRouter(t)

	rec := postJSON(t, router, "/auth/login", `{"email":"active@telesite.local","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token     string     `json:"token"`
		User      users.User `json:"user"`
		ExpiresIn int        `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, int64(1), resp.User.ID)
	require.Equal(t, 3600, resp.ExpiresIn)

	userID, err := sessions.Resolve(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, int64(1), userID)
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	router, _ := newAuthRouter(t)

	cases := []string{
		`{"email":"active@telesite.local","password":"wrong-password"}`,
		`{"email":"unknown@telesite.local","password":"correct-horse"}`,
		`{"email":"disabled@telesite.local","password":"correct-horse"}`,
	}
	for _, body := range cases {
		rec := postJSON(t, router, "/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code, body)
	}
}

func TestLoginValidatesPayload(t *testing.T) {
	router, _ := newAuthRouter(t)

	rec := postJSON(t, router, "/auth/login", `{"email":"not-an-email","password":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/auth/login", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	router, sessions := newAuthRouter(t)

	token, err := sessions.Issue(context.Background(), 1)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err = sessions.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestBearerTokenParsing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	require.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "bearer  token-123")
	require.Equal(t, "token-123", BearerToken(req))
}
