// Package httputil provides the JSON envelope, request parsing and common
// middleware shared by every spendwise handler.
//
// # Response Envelope
//
// Every response body has the shape:
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": "invalid or expired token"}
//
// Internal failures carry the underlying error text in "message" only after
// SetDetailedErrors(true), which the server enables in development:
//
//	httputil.WriteSuccess(w, user)
//	httputil.WriteUnauthorized(w, "session expired")
//	httputil.LogAndWriteInternalError(w, r, "failed to load settings", err)
//
// # Request Parsing
//
//	var req LoginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
//	page, limit, err := httputil.ParsePagination(r, 20, 100)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(origins),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
