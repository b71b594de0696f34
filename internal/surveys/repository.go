package surveys

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const surveyColumns = `id, session_id, site_id, project, status, assigned_to, created_by, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for surveys.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSurvey(row pgx.Row) (Survey, error) {
	var s Survey
	var status string
	err := row.Scan(&s.ID, &s.SessionID, &s.SiteID, &s.Project, &status, &s.AssignedTo, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Survey{}, ErrNotFound
		}
		return Survey{}, err
	}
	s.Status = Status(status)
	return s, nil
}

// Get fetches one survey by session id.
func (r *Repository) Get(ctx context.Context, sessionID string) (Survey, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+surveyColumns+` FROM surveys WHERE session_id = $1`, sessionID)
	return scanSurvey(row)
}

// List returns surveys for a project name, newest first.
func (r *Repository) List(ctx context.Context, project string, limit, offset int) ([]Survey, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM surveys WHERE project = $1`, project).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+surveyColumns+`
FROM surveys
WHERE project = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, project, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Survey
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Create inserts a new survey in the created status.
func (r *Repository) Create(ctx context.Context, s Survey) (Survey, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO surveys (session_id, site_id, project, status, assigned_to, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING `+surveyColumns,
		s.SessionID, s.SiteID, s.Project, string(StatusCreated), s.AssignedTo, s.CreatedBy)
	return scanSurvey(row)
}

// UpdateStatus moves a survey to the new status, guarded by the expected
// current statuses, and reports the status the update replaced. The
// single conditional statement is the only point of mutation exclusivity;
// a concurrent transition that got there first leaves zero rows affected.
// The FOR UPDATE subquery pins the row, so the returned prior status is
// exactly the value this statement overwrote.
func (r *Repository) UpdateStatus(ctx context.Context, sessionID string, from []Status, to Status) (Survey, Status, error) {
	fromStrs := make([]string, 0, len(from))
	for _, s := range from {
		fromStrs = append(fromStrs, string(s))
	}
	row := r.pool.QueryRow(ctx, `
UPDATE surveys s SET status = $3, updated_at = NOW()
FROM (SELECT id, status AS prior FROM surveys WHERE session_id = $1 FOR UPDATE) prev
WHERE s.id = prev.id AND s.status = ANY($2)
RETURNING s.id, s.session_id, s.site_id, s.project, s.status, s.assigned_to, s.created_by, s.created_at, s.updated_at, prev.prior`,
		sessionID, fromStrs, string(to))
	var s Survey
	var status, prior string
	err := row.Scan(&s.ID, &s.SessionID, &s.SiteID, &s.Project, &status, &s.AssignedTo, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &prior)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing survey from a wrong-state one.
			if _, getErr := r.Get(ctx, sessionID); getErr != nil {
				return Survey{}, "", getErr
			}
			return Survey{}, "", ErrInvalidTransition
		}
		return Survey{}, "", err
	}
	s.Status = Status(status)
	return s, Status(prior), nil
}

// UpdateAssignee sets or clears the assignee.
func (r *Repository) UpdateAssignee(ctx context.Context, sessionID string, assignee *int64) (Survey, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE surveys SET assigned_to = $2, updated_at = NOW()
WHERE session_id = $1
RETURNING `+surveyColumns, sessionID, assignee)
	return scanSurvey(row)
}
