// Package api provides the HTTP REST API server for spendwise.
//
// # Overview
//
// This package mounts the authentication, account and activity-log routes
// on a gorilla/mux router and wraps them in the shared middleware chain
// from pkg/httputil: request ID, logging, recovery, CORS, body limit and
// the JSON content-type check.
//
// # Route groups
//
// Public, rate limited per client IP:
//
//	POST   /api/auth/register          - Create an account (201)
//	POST   /api/auth/login             - Issue a token and session (401, 429)
//
// Authenticated (token, live session, active user):
//
//	POST   /api/auth/logout            - Delete the caller's session
//	GET    /api/auth/me                - Current user and settings
//	PUT    /api/users/profile          - Profile and password change
//	GET    /api/users/settings         - Settings, created on first read
//	PUT    /api/users/settings         - Update settings
//	DELETE /api/users/account          - Delete the account and its data
//	GET    /api/activities...          - Activity log, see pkg/activity
//
// Admin only:
//
//	GET    /api/users/list             - Paginated user list with search
//	PUT    /api/users/{userId}/status  - Enable or disable an account
//
// Operational:
//
//	GET    /healthz, /readyz           - Liveness and readiness
//	GET    /metrics                    - Prometheus metrics
//
// # Usage
//
//	server, err := api.NewServer(api.Config{
//		Accounts: accountStore,
//		Sessions: sessionStore,
//		Tokens:   tokens,
//		Attempts: tracker,
//		Activity: activityService,
//		Logger:   logger,
//	})
//	if err != nil {
//		return err
//	}
//	http.ListenAndServe(":3000", server)
//
// Data endpoints that own rows per user mount through HandleOwned, which
// admits the owner or an admin and answers 404 for absent rows:
//
//	server.HandleOwned("/expenses/{id}", middleware.ResourceExpense, expenseHandler).
//		Methods(http.MethodGet)
package api
