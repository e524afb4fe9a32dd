package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MessageLimiter is a fixed-window counter in Redis keyed by sender. It
// fails open: when Redis is unreachable the message is allowed and the
// error is returned for logging.
type MessageLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewMessageLimiter returns a limiter allowing limit messages per window.
// A non-positive limit disables limiting.
func NewMessageLimiter(client *redis.Client, limit int, window time.Duration) *MessageLimiter {
	return &MessageLimiter{redis: client, limit: limit, window: window}
}

// Allow counts one message for key and reports whether it is within the limit.
func (l *MessageLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.redis == nil || l.limit <= 0 {
		return true, nil
	}
	redisKey := fmt.Sprintf("ratelimit:msg:%s", key)

	count, err := l.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return true, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}
