package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, permissions, is_active, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var permJSON []byte
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &permJSON, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	if len(permJSON) > 0 {
		if err := json.Unmarshal(permJSON, &role.Permissions); err != nil {
			return Role{}, fmt.Errorf("roles: decode permissions: %w", err)
		}
	}
	return role, nil
}

// List returns all roles ordered by name. Inactive roles are included so
// administrators can reactivate them.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Get fetches a role by id.
func (r *Repository) Get(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// GetByName fetches a role by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// Create inserts a new role with its permission document.
func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	permJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return Role{}, fmt.Errorf("roles: encode permissions: %w", err)
	}
	created, err := scanRole(r.pool.QueryRow(ctx, `
INSERT INTO roles (name, description, permissions, is_active, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, NOW(), NOW())
RETURNING `+roleColumns, role.Name, role.Description, permJSON))
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicate
		}
		return Role{}, err
	}
	return created, nil
}

// Update replaces the description and permission document of a role.
func (r *Repository) Update(ctx context.Context, id int64, description string, doc PermissionDocument) (Role, error) {
	permJSON, err := json.Marshal(doc)
	if err != nil {
		return Role{}, fmt.Errorf("roles: encode permissions: %w", err)
	}
	updated, err := scanRole(r.pool.QueryRow(ctx, `
UPDATE roles SET description = $2, permissions = $3, updated_at = NOW()
WHERE id = $1
RETURNING `+roleColumns, id, description, permJSON))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return updated, nil
}

// SetActive toggles a role without deleting it; historical audit rows keep
// referencing the row.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roles SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if pgErr, ok := err.(*pgconn.PgError); ok {
		return pgErr.Code == "23505"
	}
	return false
}
