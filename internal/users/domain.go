package users

import (
	"fmt"
	"time"

	"github.com/telesite/telesite/internal/platform/httpx"
)

// User represents an account that holds roles and project memberships.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Domain errors.
var (
	ErrNotFound  = fmt.Errorf("users: user not found: %w", httpx.ErrNotFound)
	ErrDuplicate = fmt.Errorf("users: email already registered: %w", httpx.ErrDuplicate)
)
