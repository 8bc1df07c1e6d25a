// Package activity keeps the per-user activity trail: logins, profile and
// settings changes, exports and whatever the expense routes report.
//
// # Writing
//
// Writes are best-effort. Service.Record never returns an error; a failed
// insert is logged and counted in spendwise_activity_records_total.
//
//	svc.Record(ctx, activity.RequestRecord(r, user.ID, activity.TypeLogin, "signed in"))
//
// Routes can record declaratively. Capture only fires on a 2xx response for
// an authenticated user:
//
//	r.Handle("/expenses", activity.Capture(activity.CaptureOptions{
//		Type:     activity.TypeExpenseCreate,
//		Describe: func(*http.Request) string { return "created expense" },
//	})(createExpense)).Methods("POST")
//
// # Reading
//
// Every query takes a Caller. Non-admin callers always get a user_id
// predicate appended server-side, so filters from the client can widen
// nothing.
//
// # Retention
//
// PurgeOlderThan is admin-only. When an Archiver is configured the rows are
// written to object storage as NDJSON first and nothing is deleted unless
// the upload succeeds. Scheduler runs the same purge on a cron schedule, and
// sweeps expired sessions.
package activity
