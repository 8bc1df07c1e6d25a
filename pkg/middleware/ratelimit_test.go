package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAuthRateLimitConfig(t *testing.T) {
	cfg := AuthRateLimitConfig(0)
	assert.Equal(t, 60, cfg.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.WindowDuration)
	assert.Equal(t, 10, cfg.BurstSize)

	assert.Equal(t, 12, AuthRateLimitConfig(12).RequestsPerWindow)
}

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	clock := &stepClock{now: time.Unix(1700000000, 0)}
	limiter := NewRateLimiter(config, clock.Now)
	ctx := context.Background()

	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		ok, err := limiter.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		if ok {
			allowedCount++
		}
	}

	expected := config.RequestsPerWindow + config.BurstSize
	if allowedCount != expected {
		t.Errorf("Allowed %d requests, want %d", allowedCount, expected)
	}
	if limiter.Remaining("ip:1.2.3.4") != 0 {
		t.Errorf("Remaining = %d, want 0", limiter.Remaining("ip:1.2.3.4"))
	}

	// Other keys have their own bucket
	ok, _ := limiter.Allow(ctx, "ip:5.6.7.8")
	assert.True(t, ok)

	clock.Advance(time.Second)
	ok, _ = limiter.Allow(ctx, "ip:1.2.3.4")
	if !ok {
		t.Error("Should allow request after refill")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	config := &RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Second}
	clock := &stepClock{now: time.Unix(1700000000, 0)}
	limiter := NewRateLimiter(config, clock.Now)

	limiter.Allow(context.Background(), "a")
	clock.Advance(3 * time.Second)
	limiter.Cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.Empty(t, limiter.buckets)
}

func TestRateLimit_Middleware(t *testing.T) {
	config := &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	clock := &stepClock{now: time.Unix(1700000000, 0)}
	handler := RateLimit(NewRateLimiter(config, clock.Now), "auth")(http.HandlerFunc(okHandler))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", w.Header().Get("Retry-After"))
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// A different client is unaffected
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "198.51.100.8:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_ForwardedHeaderDoesNotSplitBuckets(t *testing.T) {
	clock := &stepClock{now: time.Unix(1700000000, 0)}
	config := AuthRateLimitConfig(6)
	handler := RateLimit(NewRateLimiter(config, clock.Now), "auth")(http.HandlerFunc(okHandler))

	rejected := 0
	for i := 0; i < 200; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i%250))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			rejected++
		}
	}
	allowed := config.RequestsPerWindow + config.BurstSize
	assert.Equal(t, 200-allowed, rejected)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter(t *testing.T) {
	mr, client := setupRedis(t)
	config := &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	limiter := NewDistributedRateLimiter(client, config, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "ip:1.1.1.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := limiter.Allow(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	ttl, err := limiter.TTL(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.True(t, mr.Exists("spendwise:ratelimit:ip:1.1.1.1"))

	// The window expires as a whole
	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, limiter.Reset(ctx, "ip:1.1.1.1"))
	remaining, err = limiter.Remaining(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestDistributedRateLimiter_FailsOpen(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewDistributedRateLimiter(client, nil, "test")
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "ip:1.1.1.1")
	assert.Error(t, err)
	assert.True(t, ok)

	handler := RateLimit(limiter, "auth")(http.HandlerFunc(okHandler))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
