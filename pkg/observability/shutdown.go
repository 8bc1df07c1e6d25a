package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager runs registered cleanup hooks in reverse registration order
type ShutdownManager struct {
	logger  *Logger
	timeout time.Duration

	mu    sync.Mutex
	funcs []namedShutdown
	done  bool
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a named hook. Hooks registered later run first.
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, namedShutdown{name: name, fn: fn})
}

// Shutdown runs every hook once, bounded by the manager timeout.
// All hooks run even if an earlier one fails.
func (sm *ShutdownManager) Shutdown(parent context.Context) error {
	sm.mu.Lock()
	if sm.done {
		sm.mu.Unlock()
		return nil
	}
	sm.done = true
	funcs := make([]namedShutdown, len(sm.funcs))
	copy(funcs, sm.funcs)
	sm.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, sm.timeout)
	defer cancel()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		hook := funcs[i]
		log := sm.logger.WithField("hook", hook.name)
		if err := hook.fn(ctx); err != nil {
			log.WithError(err).Error("shutdown hook failed")
			errs = append(errs, fmt.Errorf("%s: %w", hook.name, err))
			continue
		}
		log.Debug("shutdown hook complete")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	sm.logger.Info("graceful shutdown complete")
	return nil
}
