package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/spendwise/pkg/accounts"
	"github.com/platinummonkey/spendwise/pkg/activity"
	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/httputil"
	"github.com/platinummonkey/spendwise/pkg/middleware"
	"github.com/platinummonkey/spendwise/pkg/observability"
)

// AccountStore is the account persistence used by the handlers.
// *accounts.Store implements it.
type AccountStore interface {
	Create(ctx context.Context, nu accounts.NewUser) (*auth.User, error)
	FindByID(ctx context.Context, id int64) (*auth.User, error)
	FindByLogin(ctx context.Context, identifier string) (*auth.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
	UpdateProfile(ctx context.Context, userID int64, upd accounts.ProfileUpdate) (*auth.User, error)
	Delete(ctx context.Context, userID int64) error
	GetSettings(ctx context.Context, userID int64) (*auth.Settings, error)
	UpdateSettings(ctx context.Context, userID int64, upd accounts.SettingsUpdate) (*auth.Settings, error)
	List(ctx context.Context, filter accounts.ListFilter) (*accounts.UserPage, error)
	SetActive(ctx context.Context, userID int64, active bool) (*accounts.StatusChange, error)
}

// SessionStore is the session persistence used by login, logout and the
// authentication middleware. *sessions.Store implements it.
type SessionStore interface {
	Create(ctx context.Context, session *auth.Session) error
	FindValid(ctx context.Context, token string) (*auth.Session, error)
	DeleteByToken(ctx context.Context, token string) error
}

// Config carries the collaborators of a Server. Limiter, Owners, Metrics,
// Health, Clock and Tracing are optional.
type Config struct {
	Accounts AccountStore
	Sessions SessionStore
	Tokens   *auth.TokenService
	Hasher   *auth.PasswordHasher
	Attempts auth.AttemptTracker
	Activity *activity.Service

	Owners  middleware.OwnerLookup
	Limiter middleware.Limiter
	Metrics *observability.Metrics
	Health  *observability.HealthChecker
	Logger  *observability.Logger
	Clock   func() time.Time

	CORSOrigins  []string
	MaxBodyBytes int64
	Tracing      bool
}

func (c Config) validate() error {
	switch {
	case c.Accounts == nil:
		return errors.New("account store is required")
	case c.Sessions == nil:
		return errors.New("session store is required")
	case c.Tokens == nil:
		return errors.New("token service is required")
	case c.Attempts == nil:
		return errors.New("attempt tracker is required")
	case c.Activity == nil:
		return errors.New("activity service is required")
	case c.Logger == nil:
		return errors.New("logger is required")
	}
	return nil
}

// Server is the spendwise HTTP API
type Server struct {
	cfg       Config
	router    *mux.Router
	protected *mux.Router
	authn     *middleware.Authenticator
	handler   http.Handler

	authHandlers     *AuthHandlers
	userHandlers     *UserHandlers
	activityHandlers *activity.Handlers
}

// NewServer creates the API server and mounts every route under /api
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Hasher == nil {
		cfg.Hasher = auth.NewPasswordHasher(auth.DefaultBcryptCost)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		authn: middleware.NewAuthenticator(cfg.Tokens, cfg.Sessions, cfg.Accounts, cfg.Metrics,
			middleware.WithAuthClock(cfg.Clock)),
	}
	s.authHandlers = NewAuthHandlers(cfg.Accounts, cfg.Sessions, cfg.Tokens, cfg.Hasher, cfg.Attempts, cfg.Activity, cfg.Metrics)
	s.authHandlers.now = cfg.Clock
	s.userHandlers = NewUserHandlers(cfg.Accounts, cfg.Activity)
	s.activityHandlers = activity.NewHandlers(cfg.Activity)

	s.setupRoutes()

	var h http.Handler = s.router
	if cfg.Tracing {
		h = observability.TracingMiddleware("spendwise-api")(h)
	}
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(cfg.Logger),
		httputil.RecoveryMiddleware(cfg.Logger),
		httputil.CORSMiddleware(cfg.CORSOrigins),
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
		httputil.ContentTypeMiddleware,
	)(h)

	return s, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.cfg.Health != nil {
		s.cfg.Health.RegisterRoutes(s.router)
	}
	if s.cfg.Metrics != nil {
		s.router.Handle("/metrics", s.cfg.Metrics.Handler()).Methods(http.MethodGet)
		s.router.Use(observability.HTTPMetricsMiddleware(s.cfg.Metrics))
	}

	api := s.router.PathPrefix("/api").Subrouter()

	authRouter := api.PathPrefix("/auth").Subrouter()
	if s.cfg.Limiter != nil {
		authRouter.Use(middleware.RateLimit(s.cfg.Limiter, "auth"))
	}
	s.authHandlers.RegisterRoutes(authRouter, s.Protect)

	s.protected = api.NewRoute().Subrouter()
	s.protected.Use(s.authn.Handler, activity.InjectRecorder(s.cfg.Activity))
	s.userHandlers.RegisterRoutes(s.protected)
	s.activityHandlers.RegisterRoutes(s.protected)
}

// Protect wraps h with authentication and the activity recorder, for
// routes mounted outside the protected subrouter.
func (s *Server) Protect(h http.Handler) http.Handler {
	return s.authn.Handler(activity.InjectRecorder(s.cfg.Activity)(h))
}

// HandleOwned mounts h on the authenticated router behind an ownership
// check on the {id} route variable. Data endpoints outside this package
// use it to get the owner-or-admin gate.
func (s *Server) HandleOwned(path, resourceType string, h http.Handler) *mux.Route {
	if s.cfg.Owners == nil {
		panic("api: HandleOwned requires an owner lookup")
	}
	return s.protected.Handle(path, middleware.RequireOwnership(s.cfg.Owners, resourceType, "id")(h))
}

// Router returns the authenticated /api subrouter
func (s *Server) Router() *mux.Router {
	return s.protected
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// NewHTTPServer builds the net/http server for addr with the configured timeouts
func NewHTTPServer(addr string, handler http.Handler, read, write, idle time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}
}
