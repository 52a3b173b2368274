package telemetry

import "context"

// SpanContext is a minimal tracing context used for log enrichment. It is
// not a full tracer; codesim does not depend on OpenTelemetry.
type SpanContext struct {
	TraceID string
	SpanID  string
}

type spanContextKey struct{}

// ContextWithSpanContext returns a context carrying the provided SpanContext.
func ContextWithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, spanContextKey{}, sc)
}

// SpanContextFromContext extracts a SpanContext from ctx if present.
func SpanContextFromContext(ctx context.Context) (SpanContext, bool) {
	if ctx == nil {
		return SpanContext{}, false
	}
	sc, ok := ctx.Value(spanContextKey{}).(SpanContext)
	if !ok || (sc.TraceID == "" && sc.SpanID == "") {
		return SpanContext{}, false
	}
	return sc, true
}
