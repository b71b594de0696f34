package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/users"
)

// ErrInvalidCredentials covers unknown email, bad password and disabled
// accounts alike, so responses do not reveal which one failed.
var ErrInvalidCredentials = fmt.Errorf("auth: invalid credentials: %w", httpx.ErrUnauthorized)

// UserPort exposes the account lookup used for authentication.
type UserPort interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	users UserPort
}

// NewService constructs a new Service.
func NewService(userStore UserPort) *Service {
	return &Service{users: userStore}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return users.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, ErrInvalidCredentials
	}
	return user, nil
}
