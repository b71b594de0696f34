package rbac

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telesite/telesite/internal/roles"
)

// Repository provides PostgreSQL backed persistence for user-role bindings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActiveRoles returns the active roles bound to a user through active
// bindings. Inactive roles and revoked bindings never contribute.
func (r *Repository) ActiveRoles(ctx context.Context, userID int64) ([]roles.Role, error) {
	rows, err := r.pool.Query(ctx, `
SELECT r.id, r.name, r.description, r.permissions, r.is_active, r.created_at, r.updated_at
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1 AND ur.is_active AND r.is_active
ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []roles.Role
	for rows.Next() {
		var role roles.Role
		var permJSON []byte
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &permJSON, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		if len(permJSON) > 0 {
			if err := json.Unmarshal(permJSON, &role.Permissions); err != nil {
				return nil, fmt.Errorf("rbac: decode permissions for role %q: %w", role.Name, err)
			}
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// ListGrants returns active bindings with assignment metadata.
func (r *Repository) ListGrants(ctx context.Context, userID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
SELECT r.id, r.name, r.description, r.permissions, r.is_active, r.created_at, r.updated_at,
       ur.assigned_by, ur.assigned_at
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1 AND ur.is_active AND r.is_active
ORDER BY ur.assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Grant
	for rows.Next() {
		var g Grant
		var permJSON []byte
		if err := rows.Scan(&g.Role.ID, &g.Role.Name, &g.Role.Description, &permJSON, &g.Role.IsActive, &g.Role.CreatedAt, &g.Role.UpdatedAt, &g.AssignedBy, &g.AssignedAt); err != nil {
			return nil, err
		}
		if len(permJSON) > 0 {
			if err := json.Unmarshal(permJSON, &g.Role.Permissions); err != nil {
				return nil, fmt.Errorf("rbac: decode permissions for role %q: %w", g.Role.Name, err)
			}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Assign inserts an active binding. A partial unique index on
// (user_id, role_id) WHERE is_active turns re-assignment into a conflict.
func (r *Repository) Assign(ctx context.Context, userID, roleID int64, assignedBy *int64) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO user_roles (user_id, role_id, assigned_by, assigned_at, is_active)
VALUES ($1, $2, $3, NOW(), TRUE)`, userID, roleID, assignedBy)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return ErrBindingExists
		}
		return err
	}
	return nil
}

// Remove soft-deletes the active binding, preserving history.
func (r *Repository) Remove(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE user_roles SET is_active = FALSE
WHERE user_id = $1 AND role_id = $2 AND is_active`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBindingNotFound
	}
	return nil
}

// HasActiveRole reports whether the user holds any of the named roles
// through an active binding to an active role.
func (r *Repository) HasActiveRole(ctx context.Context, userID int64, names []string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM user_roles ur
  JOIN roles r ON r.id = ur.role_id
  WHERE ur.user_id = $1 AND ur.is_active AND r.is_active AND r.name = ANY($2)
)`, userID, names).Scan(&exists)
	return exists, err
}
