package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telesite/telesite/internal/roles"
)

// Repository provides PostgreSQL backed persistence for projects and
// memberships.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectColumns = `id, name, description, is_active, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// List returns all projects ordered by name.
func (r *Repository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get fetches a project by id.
func (r *Repository) Get(ctx context.Context, id int64) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return p, nil
}

// FindByName resolves a project by exact name match.
func (r *Repository) FindByName(ctx context.Context, name string) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return p, nil
}

// Create inserts a new project.
func (r *Repository) Create(ctx context.Context, p Project) (Project, error) {
	created, err := scanProject(r.pool.QueryRow(ctx, `
INSERT INTO projects (name, description, is_active, created_at, updated_at)
VALUES ($1, $2, TRUE, NOW(), NOW())
RETURNING `+projectColumns, p.Name, p.Description))
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return Project{}, ErrDuplicate
		}
		return Project{}, err
	}
	return created, nil
}

// SetActive toggles a project without deleting it.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignMember inserts an active membership. A partial unique index on
// (user_id, project_id) WHERE is_active rejects re-assignment.
func (r *Repository) AssignMember(ctx context.Context, m Membership) error {
	var permJSON []byte
	if m.Permissions != nil {
		var err error
		permJSON, err = json.Marshal(m.Permissions)
		if err != nil {
			return fmt.Errorf("projects: encode override permissions: %w", err)
		}
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO user_projects (user_id, project_id, assigned_by, assigned_at, role_in_project, permissions, is_active)
VALUES ($1, $2, $3, NOW(), $4, $5, TRUE)`, m.UserID, m.ProjectID, m.AssignedBy, m.RoleInProject, permJSON)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return ErrMemberExists
		}
		return err
	}
	return nil
}

// RemoveMember soft-deletes the active membership.
func (r *Repository) RemoveMember(ctx context.Context, userID, projectID int64) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE user_projects SET is_active = FALSE
WHERE user_id = $1 AND project_id = $2 AND is_active`, userID, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// ListMembers returns active memberships of a project.
func (r *Repository) ListMembers(ctx context.Context, projectID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, project_id, assigned_by, assigned_at, role_in_project, permissions, is_active
FROM user_projects
WHERE project_id = $1 AND is_active
ORDER BY assigned_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		var m Membership
		var permJSON []byte
		if err := rows.Scan(&m.ID, &m.UserID, &m.ProjectID, &m.AssignedBy, &m.AssignedAt, &m.RoleInProject, &permJSON, &m.IsActive); err != nil {
			return nil, err
		}
		if len(permJSON) > 0 {
			var doc roles.PermissionDocument
			if err := json.Unmarshal(permJSON, &doc); err != nil {
				return nil, fmt.Errorf("projects: decode override permissions: %w", err)
			}
			m.Permissions = &doc
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ProjectNamesFor returns names of active projects a user is actively
// bound to.
func (r *Repository) ProjectNamesFor(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT p.name
FROM user_projects up
JOIN projects p ON p.id = up.project_id
WHERE up.user_id = $1 AND up.is_active AND p.is_active
ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
