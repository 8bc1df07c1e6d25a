package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// recordAttemptScript applies the throttle algorithm atomically.
// KEYS[1] record key; ARGV: now (ms), window (ms), max attempts.
var recordAttemptScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
if (not start) or (now - start > window) then
  redis.call('HSET', KEYS[1], 'start', now, 'count', 1, 'last', now)
  redis.call('PEXPIRE', KEYS[1], window)
  return 1
end
local count = tonumber(redis.call('HGET', KEYS[1], 'count')) or 0
if count >= max then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('HSET', KEYS[1], 'last', now)
return 1
`)

// RedisAttemptTracker shares attempt records between instances through Redis.
// Keys expire once their window has elapsed.
type RedisAttemptTracker struct {
	client *redis.Client
	policy AttemptPolicy
	prefix string
	now    func() time.Time
}

// NewRedisAttemptTracker creates a Redis-backed tracker
func NewRedisAttemptTracker(client *redis.Client, policy AttemptPolicy, prefix string, now func() time.Time) *RedisAttemptTracker {
	if prefix == "" {
		prefix = "spendwise:login_attempts"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisAttemptTracker{
		client: client,
		policy: policy.withDefaults(),
		prefix: prefix,
		now:    now,
	}
}

func (t *RedisAttemptTracker) key(identifier string) string {
	return fmt.Sprintf("%s:%s", t.prefix, identifier)
}

func (t *RedisAttemptTracker) RecordAttempt(ctx context.Context, identifier string) (bool, error) {
	allowed, err := recordAttemptScript.Run(ctx, t.client,
		[]string{t.key(identifier)},
		t.now().UnixMilli(),
		t.policy.Window.Milliseconds(),
		t.policy.MaxAttempts,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to record login attempt: %w", err)
	}
	return allowed == 1, nil
}

func (t *RedisAttemptTracker) ClearAttempts(ctx context.Context, identifier string) error {
	if err := t.client.Del(ctx, t.key(identifier)).Err(); err != nil {
		return fmt.Errorf("failed to clear login attempts: %w", err)
	}
	return nil
}

func (t *RedisAttemptTracker) Remaining(ctx context.Context, identifier string) (int, error) {
	vals, err := t.client.HMGet(ctx, t.key(identifier), "start", "count").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read login attempts: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return t.policy.MaxAttempts, nil
	}

	start, err := strconv.ParseInt(fmt.Sprint(vals[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt attempt record: %w", err)
	}
	count, err := strconv.Atoi(fmt.Sprint(vals[1]))
	if err != nil {
		return 0, fmt.Errorf("corrupt attempt record: %w", err)
	}

	if t.now().UnixMilli()-start > t.policy.Window.Milliseconds() {
		return t.policy.MaxAttempts, nil
	}
	if left := t.policy.MaxAttempts - count; left > 0 {
		return left, nil
	}
	return 0, nil
}
