// Package middleware provides HTTP middleware for authentication, authorization, and rate limiting.
//
// # Overview
//
// Authenticator walks every request through four gates and stops at the
// first failure:
//
//	no token            -> 401 "authorization required"
//	bad signature/exp   -> 401 "invalid or expired token"
//	no live session     -> 401 "session expired"
//	user gone/disabled  -> 401 "user not found or disabled"
//
// A datastore error at any gate is a 500. On success the request context
// carries an *auth.AuthContext.
//
// # Middleware Components
//
// Authentication:
//
//	authn := middleware.NewAuthenticator(tokens, sessionStore, accountStore, metrics)
//	protected.Use(authn.Handler)
//
// Role and ownership gates, applied after authentication:
//
//	admin.Use(middleware.RequireRole(auth.RoleAdmin))
//	owners := middleware.NewOwnerRegistry(db)
//	r.Handle("/expenses/{id}", middleware.RequireOwnership(owners, middleware.ResourceExpense, "id")(h))
//
// Per-IP throttling of the public auth routes, in process or shared through Redis:
//
//	limiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig(60), nil)
//	public.Use(middleware.RateLimit(limiter, "auth"))
//
// # Related Packages
//
//   - pkg/auth: Token verification and AuthContext
//   - pkg/sessions: Session lookup
//   - pkg/accounts: User lookup
package middleware
