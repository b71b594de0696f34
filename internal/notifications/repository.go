package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telesite/telesite/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for notifications and
// the audience queries the dispatcher needs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProjectIDByName resolves a survey's free-text project name to a project
// row. The second return is false when no row matches; the caller treats
// that as an empty audience, not an error.
func (r *Repository) ProjectIDByName(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM projects WHERE name = $1 AND is_active`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// MembersWithRole returns ids of users actively bound to the project who
// hold any of the named roles through active bindings.
func (r *Repository) MembersWithRole(ctx context.Context, projectID int64, roleNames []string) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT up.user_id
FROM user_projects up
JOIN user_roles ur ON ur.user_id = up.user_id AND ur.is_active
JOIN roles ro ON ro.id = ur.role_id AND ro.is_active
WHERE up.project_id = $1 AND up.is_active AND ro.name = ANY($2)
ORDER BY up.user_id`, projectID, roleNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserHasRole reports whether a single user holds the named role.
func (r *Repository) UserHasRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM user_roles ur
  JOIN roles ro ON ro.id = ur.role_id
  WHERE ur.user_id = $1 AND ur.is_active AND ro.is_active AND ro.name = $2
)`, userID, roleName).Scan(&exists)
	return exists, err
}

// BulkInsert writes one row per recipient in a single transactional batch.
// A failed batch leaves no rows behind, so a redispatch of the same event
// cannot produce partial duplicates.
func (r *Repository) BulkInsert(ctx context.Context, items []Notification) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, n := range items {
		batch.Queue(`
INSERT INTO notifications (user_id, title, message, type, related_survey_id, related_project_id, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())`,
			n.UserID, n.Title, n.Message, string(n.Type), n.RelatedSurveyID, n.RelatedProjectID)
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range items {
			if _, err := results.Exec(); err != nil {
				return err
			}
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// List returns a page of the recipient's notifications, newest first.
func (r *Repository) List(ctx context.Context, userID int64, limit, offset int) ([]Notification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, title, message, type, related_survey_id, related_project_id, is_read, created_at, read_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &kind, &n.RelatedSurveyID, &n.RelatedProjectID, &n.IsRead, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, 0, err
		}
		n.Type = Type(kind)
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// UnreadCount counts the recipient's unread notifications.
func (r *Repository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&count)
	return count, err
}

// MarkRead marks one notification read, scoped to its owner.
func (r *Repository) MarkRead(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE notifications SET is_read = TRUE, read_at = NOW()
WHERE id = $1 AND user_id = $2 AND NOT is_read`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE notifications SET is_read = TRUE, read_at = NOW()
WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes one notification, scoped to its owner.
func (r *Repository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune deletes notifications older than the cutoff, returning the number
// of rows removed.
func (r *Repository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
