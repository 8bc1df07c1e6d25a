package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/httputil"
	"github.com/platinummonkey/spendwise/pkg/observability"
)

// Messages written with 401 and 500 responses
const (
	MsgAuthRequired   = "authorization required"
	MsgInvalidToken   = "invalid or expired token"
	MsgSessionExpired = "session expired"
	MsgUserUnusable   = "user not found or disabled"
	MsgAuthError      = "authentication failed"
)

// TokenVerifier checks a bearer token's signature and expiry
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// SessionFinder returns the unexpired session for a token or auth.ErrSessionNotFound
type SessionFinder interface {
	FindValid(ctx context.Context, token string) (*auth.Session, error)
}

// UserFinder loads an account by ID or returns auth.ErrUserNotFound
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*auth.User, error)
}

// Authenticator gates requests on a valid bearer token, a live session and
// an active user, in that order.
type Authenticator struct {
	tokens   TokenVerifier
	sessions SessionFinder
	users    UserFinder
	metrics  *observability.Metrics
	now      func() time.Time
}

// AuthenticatorOption customizes an Authenticator
type AuthenticatorOption func(*Authenticator)

// WithAuthClock overrides the clock sessions are checked against
func WithAuthClock(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		a.now = now
	}
}

// NewAuthenticator creates the authentication middleware. metrics may be nil.
func NewAuthenticator(tokens TokenVerifier, sessions SessionFinder, users UserFinder, metrics *observability.Metrics, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		metrics:  metrics,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler wraps an HTTP handler with authentication
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := httputil.BearerToken(r)
		if token == "" {
			a.reject(w, "missing_token", MsgAuthRequired)
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			a.reject(w, "invalid_token", MsgInvalidToken)
			return
		}

		session, err := a.sessions.FindValid(ctx, token)
		if errors.Is(err, auth.ErrSessionNotFound) {
			a.reject(w, "session_expired", MsgSessionExpired)
			return
		}
		if err != nil {
			a.fail(w, r, "session", err)
			return
		}
		if !session.IsValid(a.now()) {
			a.reject(w, "session_expired", MsgSessionExpired)
			return
		}

		user, err := a.users.FindByID(ctx, claims.UserID)
		if errors.Is(err, auth.ErrUserNotFound) {
			a.reject(w, "user_unusable", MsgUserUnusable)
			return
		}
		if err != nil {
			a.fail(w, r, "user", err)
			return
		}
		if !user.IsActive {
			a.reject(w, "user_unusable", MsgUserUnusable)
			return
		}

		ctx = auth.NewContext(ctx, &auth.AuthContext{
			User:    user,
			Token:   token,
			Session: session,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, reason, message string) {
	if a.metrics != nil {
		a.metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	}
	httputil.WriteUnauthorized(w, message)
}

func (a *Authenticator) fail(w http.ResponseWriter, r *http.Request, stage string, err error) {
	if a.metrics != nil {
		a.metrics.AuthFailuresTotal.WithLabelValues("error").Inc()
	}
	observability.FromContext(r.Context()).
		WithField("stage", stage).
		WithError(err).
		Error("authentication lookup failed")
	httputil.WriteInternalError(w, MsgAuthError, err)
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		return nil
	}
	return ac
}
