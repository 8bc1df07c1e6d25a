package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/platinummonkey/spendwise/pkg/httputil"
	"github.com/platinummonkey/spendwise/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// AuthRateLimitConfig returns the per-IP limit applied to the public auth
// routes. Non-positive values fall back to 60 requests per minute.
func AuthRateLimitConfig(perMinute int) *RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimitConfig{
		RequestsPerWindow: perMinute,
		WindowDuration:    time.Minute,
		BurstSize:         perMinute / 6,
	}
}

// Limiter decides whether one more request for key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() *RateLimitConfig
}

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates an in-process rate limiter. now may be nil.
func NewRateLimiter(config *RateLimitConfig, now func() time.Time) *RateLimiter {
	if config == nil {
		config = AuthRateLimitConfig(0)
	}
	if now == nil {
		now = time.Now
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// Config returns the limiter's configuration
func (rl *RateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow checks if a request is allowed for the given key. It never fails.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	maxTokens := rl.config.RequestsPerWindow + rl.config.BurstSize

	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     maxTokens,
			lastUpdate: rl.now(),
		}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(b.lastUpdate)

	tokensToAdd := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		if b.tokens > maxTokens {
			b.tokens = maxTokens
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		return rl.config.RequestsPerWindow + rl.config.BurstSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.tokens
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup runs Cleanup once per window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimit throttles requests per client IP under scope. Limiter errors
// are logged and the request is let through.
func RateLimit(limiter Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + httputil.ClientIP(r)
			cfg := limiter.Config()

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				observability.FromContext(r.Context()).
					WithField("key", key).
					WithError(err).
					Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RequestsPerWindow))
			if !allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", cfg.WindowDuration.Seconds()))
				w.Header().Set("X-RateLimit-Remaining", "0")
				httputil.WriteTooManyRequests(w, "too many requests, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
