package rbac

import (
	"fmt"
	"time"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/roles"
)

// UserRole binds a user to a role. Bindings are soft-deleted so the grant
// history stays queryable.
type UserRole struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	RoleID     int64     `json:"role_id"`
	AssignedBy *int64    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
	IsActive   bool      `json:"is_active"`
}

// Grant is an active binding joined to its role, as returned by listings.
type Grant struct {
	Role       roles.Role `json:"role"`
	AssignedBy *int64     `json:"assigned_by,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
}

// PermissionSummary aggregates a user's effective permissions for the UI.
type PermissionSummary struct {
	UserID     int64                        `json:"user_id"`
	Roles      []string                     `json:"roles"`
	Projects   []string                     `json:"projects"`
	SiteStatus roles.SiteStatusPermissions  `json:"site_status"`
	SiteAccess roles.SiteAccessPermissions  `json:"site_access"`
}

// Domain errors.
var (
	ErrBindingExists   = fmt.Errorf("rbac: role already assigned: %w", httpx.ErrDuplicate)
	ErrBindingNotFound = fmt.Errorf("rbac: active binding not found: %w", httpx.ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("rbac: user not found: %w", httpx.ErrNotFound)
	ErrRoleInactive    = fmt.Errorf("rbac: role is inactive: %w", httpx.ErrValidation)
)
