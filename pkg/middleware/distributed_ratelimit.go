package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements fixed-window rate limiting in Redis so
// every instance shares one count per key.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = AuthRateLimitConfig(0)
	}
	if prefix == "" {
		prefix = "spendwise:ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Config returns the limiter's configuration
func (rl *DistributedRateLimiter) Config() *RateLimitConfig {
	return rl.config
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow counts the request in the current window. The window starts with
// the first request for key and lasts WindowDuration. On Redis errors it
// returns true together with the error.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.key(key)

	var incr *redis.IntCmd
	_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, rl.config.WindowDuration)
		incr = pipe.Incr(ctx, redisKey)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	limit := int64(rl.config.RequestsPerWindow + rl.config.BurstSize)
	return incr.Val() <= limit, nil
}

// Remaining returns the number of remaining requests in the window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	limit := rl.config.RequestsPerWindow + rl.config.BurstSize

	count, err := rl.redis.Get(ctx, rl.key(key)).Int()
	if err == redis.Nil {
		return limit, nil
	} else if err != nil {
		return 0, err
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL returns the time until the rate limit window resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.key(key)).Result()
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}
