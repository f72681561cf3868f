package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Increments the window counter and sets its expiry on first hit, atomically.
// Returns the count after increment.
const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`

// RedisLimiter shares fixed-window counters across API instances.
type RedisLimiter struct {
	client   redis.UniversalClient
	script   *redis.Script
	limit    int
	duration time.Duration
	prefix   string
}

// NewRedisLimiter allows limit calls per client per window using shared Redis counters.
func NewRedisLimiter(client redis.UniversalClient, limit int, duration time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		script:   redis.NewScript(fixedWindowScript),
		limit:    limit,
		duration: duration,
		prefix:   "ratelimit:lead:",
	}
}

// Allow returns an error when Redis is unreachable; callers decide whether to fail open.
func (l *RedisLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	count, err := l.script.Run(ctx, l.client, []string{l.prefix + clientKey}, l.duration.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= int64(l.limit), nil
}

var _ Limiter = (*RedisLimiter)(nil)
