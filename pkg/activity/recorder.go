package activity

import (
	"context"

	"github.com/platinummonkey/spendwise/pkg/contextkeys"
)

// Recorder appends activities. Implementations must not fail the caller:
// Record has no error result.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

// NoopRecorder discards every record
type NoopRecorder struct{}

// Record implements Recorder
func (NoopRecorder) Record(context.Context, Record) {}

// WithRecorder adds a recorder to the context
func WithRecorder(ctx context.Context, r Recorder) context.Context {
	return contextkeys.WithActivityRecorder(ctx, r)
}

// FromContext returns the recorder in ctx, or a NoopRecorder
func FromContext(ctx context.Context) Recorder {
	if r, ok := ctx.Value(contextkeys.ActivityRecorderKey).(Recorder); ok && r != nil {
		return r
	}
	return NoopRecorder{}
}
