package alerting

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	unreadCounterKey = "watchlist:alerts:unread"
	unreadCounterTTL = 30 * time.Second
)

// RedisCounter caches the unread aggregate in Redis so badge polling does not
// hammer the alert table. Cache failures degrade to the COUNT fallback and
// are never surfaced.
type RedisCounter struct {
	client *redis.Client
	logger *zap.Logger
}

var _ UnreadCounter = (*RedisCounter)(nil)

// NewRedisCounter creates a RedisCounter
func NewRedisCounter(client *redis.Client, logger *zap.Logger) *RedisCounter {
	return &RedisCounter{client: client, logger: logger}
}

// Get returns the cached count, or a miss when absent or unreachable
func (c *RedisCounter) Get(ctx context.Context) (int64, bool) {
	count, err := c.client.Get(ctx, unreadCounterKey).Int64()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		c.logger.Debug("unread counter cache read failed", zap.Error(err))
		return 0, false
	}
	return count, true
}

// Set stores the count with a short TTL
func (c *RedisCounter) Set(ctx context.Context, count int64) {
	if err := c.client.Set(ctx, unreadCounterKey, count, unreadCounterTTL).Err(); err != nil {
		c.logger.Debug("unread counter cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached count
func (c *RedisCounter) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, unreadCounterKey).Err(); err != nil {
		c.logger.Debug("unread counter cache invalidation failed", zap.Error(err))
	}
}
