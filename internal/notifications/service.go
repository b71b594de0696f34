package notifications

import (
	"context"
	"time"
)

// RepositoryPort defines data access for the recipient-facing operations.
type RepositoryPort interface {
	List(ctx context.Context, userID int64, limit, offset int) ([]Notification, int, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id, userID int64) error
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// CachePort caches unread counters.
type CachePort interface {
	Get(ctx context.Context, userID int64) (int64, bool)
	Set(ctx context.Context, userID, count int64)
	Invalidate(ctx context.Context, userIDs ...int64)
}

// Service handles a recipient's view of their notifications. Every
// operation is scoped to the authenticated user; there is no cross-user
// read path.
type Service struct {
	repo      RepositoryPort
	cache     CachePort
	retention time.Duration
}

// NewService builds a Service instance. A nil cache disables caching.
func NewService(repo RepositoryPort, cache CachePort, retention time.Duration) *Service {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Service{repo: repo, cache: cache, retention: retention}
}

// List returns a page of the user's notifications plus the total count.
func (s *Service) List(ctx context.Context, userID int64, limit, offset int) ([]Notification, int, error) {
	return s.repo.List(ctx, userID, limit, offset)
}

// UnreadCount returns the user's unread counter, served from cache when
// fresh.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	if s.cache != nil {
		if count, ok := s.cache.Get(ctx, userID); ok {
			return count, nil
		}
	}
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, userID, count)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications read.
func (s *Service) MarkRead(ctx context.Context, id, userID int64) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read and
// returns how many were affected.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	affected, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	return affected, nil
}

// Delete removes one of the user's notifications.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	return nil
}

// Prune removes notifications past the retention window. Invoked by the
// scheduled cleanup job.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	return s.repo.Prune(ctx, time.Now().Add(-s.retention))
}
