package auth

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultMaxAttempts     = 5
	DefaultAttemptWindow   = 15 * time.Minute
	DefaultAttemptCapacity = 10000
)

// AttemptTracker throttles repeated login attempts per identifier
type AttemptTracker interface {
	// RecordAttempt counts an attempt and reports whether it may proceed
	RecordAttempt(ctx context.Context, identifier string) (bool, error)
	// ClearAttempts forgets the identifier after a successful login
	ClearAttempts(ctx context.Context, identifier string) error
	// Remaining reports how many attempts are left in the current window
	Remaining(ctx context.Context, identifier string) (int, error)
}

// AttemptPolicy is the throttle shape shared by all trackers
type AttemptPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

func (p AttemptPolicy) withDefaults() AttemptPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Window <= 0 {
		p.Window = DefaultAttemptWindow
	}
	return p
}

type attemptRecord struct {
	count       int
	windowStart time.Time
	lastAttempt time.Time
}

// MemoryAttemptTracker keeps attempt records in a bounded in-process LRU.
// Records are lost on restart.
type MemoryAttemptTracker struct {
	policy   AttemptPolicy
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	records *lru.Cache[string, *attemptRecord]
}

// NewMemoryAttemptTracker creates a tracker holding at most capacity identifiers.
// Records whose window has elapsed make room for new identifiers. A record
// inside its window is never evicted; when every slot is live, attempts for
// untracked identifiers are denied until a window elapses.
func NewMemoryAttemptTracker(policy AttemptPolicy, capacity int, now func() time.Time) (*MemoryAttemptTracker, error) {
	if capacity <= 0 {
		capacity = DefaultAttemptCapacity
	}
	if now == nil {
		now = time.Now
	}
	cache, err := lru.New[string, *attemptRecord](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryAttemptTracker{
		policy:   policy.withDefaults(),
		capacity: capacity,
		now:      now,
		records:  cache,
	}, nil
}

func (t *MemoryAttemptTracker) RecordAttempt(_ context.Context, identifier string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.records.Get(identifier)
	if ok && t.expired(rec, now) {
		rec.count, rec.windowStart, rec.lastAttempt = 1, now, now
		return true, nil
	}
	if !ok {
		if t.records.Len() >= t.capacity && t.prune(now) == 0 {
			return false, nil
		}
		t.records.Add(identifier, &attemptRecord{count: 1, windowStart: now, lastAttempt: now})
		return true, nil
	}

	if rec.count >= t.policy.MaxAttempts {
		return false, nil
	}

	rec.count++
	rec.lastAttempt = now
	return true, nil
}

func (t *MemoryAttemptTracker) expired(rec *attemptRecord, now time.Time) bool {
	return now.Sub(rec.windowStart) > t.policy.Window
}

// prune drops every record whose window has elapsed and returns how many went
func (t *MemoryAttemptTracker) prune(now time.Time) int {
	removed := 0
	for _, key := range t.records.Keys() {
		if rec, ok := t.records.Peek(key); ok && t.expired(rec, now) {
			t.records.Remove(key)
			removed++
		}
	}
	return removed
}

func (t *MemoryAttemptTracker) ClearAttempts(_ context.Context, identifier string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records.Remove(identifier)
	return nil
}

func (t *MemoryAttemptTracker) Remaining(_ context.Context, identifier string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records.Peek(identifier)
	if !ok || t.expired(rec, t.now()) {
		return t.policy.MaxAttempts, nil
	}
	if left := t.policy.MaxAttempts - rec.count; left > 0 {
		return left, nil
	}
	return 0, nil
}

// Len returns the number of tracked identifiers
func (t *MemoryAttemptTracker) Len() int {
	return t.records.Len()
}
