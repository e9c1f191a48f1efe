package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

const keyPrefixQuota = "quota:"

// allowScript atomically counts an attempt within the fixed window.
// KEYS[1] = counter key, ARGV[1] = limit, ARGV[2] = window in milliseconds.
// Returns the new count, or -1 when the limit is already reached (the
// rejected attempt is not counted).
var allowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return -1
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return count
`)

// RedisLimiter is a fixed-window limiter shared across processes via Redis.
// The window TTL is set when the first operation of a window lands, so the
// window is anchored to first use, matching the in-memory limiter.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	limit  int
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, window time.Duration, limit int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		window: window,
		limit:  limit,
	}
}

func (l *RedisLimiter) key(actorID string) string {
	return keyPrefixQuota + actorID
}

// Allow consumes one unit of quota for the actor.
func (l *RedisLimiter) Allow(ctx context.Context, actorID string) error {
	count, err := allowScript.Run(ctx, l.client, []string{l.key(actorID)},
		l.limit, l.window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("quota check failed: %w", err)
	}
	if count < 0 {
		return fmt.Errorf("actor %s: %w", actorID, cverrors.ErrQuotaExceeded)
	}
	return nil
}

// Remaining reports the actor's remaining budget in the current window.
func (l *RedisLimiter) Remaining(ctx context.Context, actorID string) (int, error) {
	count, err := l.client.Get(ctx, l.key(actorID)).Int()
	if err != nil {
		if err == redis.Nil {
			return l.limit, nil
		}
		return 0, fmt.Errorf("quota read failed: %w", err)
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
