// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/platinummonkey/spendwise/pkg/contextkeys"
//   ctx = contextkeys.WithAuth(ctx, authCtx)
//   authCtx, _ := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
package contextkeys

import (
	"context"
	"time"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: all protected endpoints, RequireRole, RequireOwnership
	// Type: *auth.AuthContext
	AuthKey Key = "auth_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, activity metadata
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID
	// Set by: middleware.Authenticator after the session gate passes
	// Used by: Logger
	// Type: int64
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	// Used by: handlers that need request-scoped structured logging
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// ActivityRecorderKey contains activity.Recorder
	// Set by: api.Server
	// Used by: activity.Capture middleware
	// Type: activity.Recorder
	ActivityRecorderKey Key = "activity_recorder"

	// RequestStartTimeKey contains request start timestamp
	// Set by: httputil.LoggingMiddleware
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithActivityRecorder adds the activity recorder to the context
func WithActivityRecorder(ctx context.Context, recorder interface{}) context.Context {
	return context.WithValue(ctx, ActivityRecorderKey, recorder)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

// GetRequestStartTime retrieves the request start time, falling back to now
func GetRequestStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(RequestStartTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}
