package telemetry

import "context"

type scanIDKey struct{}
type correlationIDKey struct{}

// ContextWithScanID attaches a scan id for log enrichment along a call chain.
func ContextWithScanID(ctx context.Context, scanID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scanIDKey{}, scanID)
}

// ScanIDFromContext extracts a scan id previously attached, if any.
func ScanIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(scanIDKey{}).(string)
	return v, ok && v != ""
}

// ContextWithCorrelationID attaches the correlation id that is propagated
// across the whole scan.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// CorrelationIDFromContext extracts a correlation id previously attached, if any.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(correlationIDKey{}).(string)
	return v, ok && v != ""
}
