package telemetry

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

// NewTraceID generates a 128-bit hex trace id (§4.6 glossary) established
// at request start.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace id to ctx for propagation through the
// decision path and into every log line it produces.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceIDFromContext retrieves the trace id set by WithTraceID, if any.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}
