package projects

import (
	"fmt"
	"time"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/roles"
)

// Project groups surveys under a name. Surveys reference projects by name,
// not by foreign key, so lookups are exact-match on the name column.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership binds a user to a project, optionally carrying a
// project-scoped role label and permission override document.
type Membership struct {
	ID            int64                     `json:"id"`
	UserID        int64                     `json:"user_id"`
	ProjectID     int64                     `json:"project_id"`
	AssignedBy    *int64                    `json:"assigned_by,omitempty"`
	AssignedAt    time.Time                 `json:"assigned_at"`
	RoleInProject string                    `json:"role_in_project,omitempty"`
	Permissions   *roles.PermissionDocument `json:"permissions,omitempty"`
	IsActive      bool                      `json:"is_active"`
}

// Domain errors.
var (
	ErrNotFound       = fmt.Errorf("projects: project not found: %w", httpx.ErrNotFound)
	ErrDuplicate      = fmt.Errorf("projects: project name already exists: %w", httpx.ErrDuplicate)
	ErrInactive       = fmt.Errorf("projects: project is inactive: %w", httpx.ErrValidation)
	ErrMemberExists   = fmt.Errorf("projects: user already assigned to project: %w", httpx.ErrDuplicate)
	ErrMemberNotFound = fmt.Errorf("projects: active membership not found: %w", httpx.ErrNotFound)
	ErrMemberUserGone = fmt.Errorf("projects: user not found: %w", httpx.ErrNotFound)
)
