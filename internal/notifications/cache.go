package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const unreadKeyPrefix = "notif:unread:"

// UnreadCache keeps per-user unread counters in Redis so the badge poll
// does not hit PostgreSQL on every request. The database stays the source
// of truth; cache misses fall through to a COUNT query.
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewUnreadCache constructs an UnreadCache.
func NewUnreadCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *UnreadCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UnreadCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached counter. The second return is false on a miss or
// a Redis failure; the caller recomputes from the database either way.
func (c *UnreadCache) Get(ctx context.Context, userID int64) (int64, bool) {
	raw, err := c.client.Get(ctx, unreadKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("unread cache read failed", slog.Any("error", err))
		}
		return 0, false
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// Set stores the counter with the configured TTL.
func (c *UnreadCache) Set(ctx context.Context, userID, count int64) {
	if err := c.client.Set(ctx, unreadKey(userID), count, c.ttl).Err(); err != nil {
		c.logger.Warn("unread cache write failed", slog.Any("error", err))
	}
}

// Invalidate drops the counters for the given users. Called after any
// write that changes unread state.
func (c *UnreadCache) Invalidate(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, unreadKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("unread cache invalidate failed", slog.Any("error", err))
	}
}

func unreadKey(userID int64) string {
	return unreadKeyPrefix + fmt.Sprintf("%d", userID)
}
