package activity

import (
	"net/http"

	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/httputil"
)

// CaptureOptions describes the activity recorded for a route
type CaptureOptions struct {
	Type Type

	// Describe and Metadata run after the handler. They must not read the
	// request body.
	Describe func(r *http.Request) string
	Metadata func(r *http.Request) map[string]interface{}
}

// InjectRecorder makes rec available to handlers and Capture through the
// request context
func InjectRecorder(rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithRecorder(r.Context(), rec)))
		})
	}
}

// Capture records an activity once the wrapped handler answered with a 2xx
// status for an authenticated user
func Capture(opts CaptureOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := httputil.NewStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			if wrapped.Status < 200 || wrapped.Status >= 300 {
				return
			}
			ac, ok := auth.FromContext(r.Context())
			if !ok || ac.User == nil {
				return
			}

			var description string
			if opts.Describe != nil {
				description = opts.Describe(r)
			}
			rec := RequestRecord(r, ac.User.ID, opts.Type, description)
			if opts.Metadata != nil {
				rec.Metadata = opts.Metadata(r)
			}
			FromContext(r.Context()).Record(r.Context(), rec)
		})
	}
}

// RequestRecord fills a Record with the client address and user agent of r
func RequestRecord(r *http.Request, userID int64, t Type, description string) Record {
	return Record{
		UserID:      userID,
		Type:        t,
		Description: description,
		IPAddress:   httputil.ClientIP(r),
		UserAgent:   r.UserAgent(),
	}
}
