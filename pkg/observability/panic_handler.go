package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace.
//
// Usage in defer statements:
//
//	func (s *Scheduler) purge() {
//	    defer observability.RecoverPanic(s.logger, "activity retention purge")
//	    // ...
//	}
//
// The panic is NOT re-raised. Use it at the top of background jobs where a
// crash would take the whole process down with it.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithField("panic", fmt.Sprint(r)).
			WithField("stack", string(debug.Stack())).
			WithField("context", where).
			Error("PANIC recovered")
	}
}
