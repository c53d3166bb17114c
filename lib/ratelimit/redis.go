package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lambdakit/lib/constants"
)

var consumeScript = redis.NewScript(`
local current = redis.call("INCRBY", KEYS[1], ARGV[1])
if redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return current
`)

// RedisLimiter counts points per fixed window in Redis. Rejected attempts
// still count against the window.
type RedisLimiter struct {
	Client *redis.Client
	Points int
	Window time.Duration
	Prefix string
}

// NewRedis creates a limiter sharing its budget through client.
func NewRedis(client *redis.Client, points int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = constants.RATE_LIMIT_DURATION * time.Second
	}
	if points <= 0 {
		points = constants.RATE_LIMIT_POINTS_PER_SECOND
	}
	return &RedisLimiter{Client: client, Points: points, Window: window, Prefix: "rl:"}
}

func (l *RedisLimiter) Consume(ctx context.Context, key string, points int) error {
	if points > l.Points {
		return fmt.Errorf("%s: %w", key, ErrInsufficientPoints)
	}
	count, err := consumeScript.Run(ctx, l.Client, []string{l.Prefix + key}, points, l.Window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("rate limit store: %w", err)
	}
	if count > int64(l.Points) {
		return fmt.Errorf("%s: %w", key, ErrInsufficientPoints)
	}
	return nil
}

func (l *RedisLimiter) Close() error {
	return l.Client.Close()
}
