package observability

import "context"

type contextKey struct{}

var spanContextKey = contextKey{}

// SpanFromContext returns the active span stored in ctx, or nil when no
// span has been attached.
func SpanFromContext(ctx context.Context) Span {
	if span, ok := ctx.Value(spanContextKey).(Span); ok {
		return span
	}
	return nil
}

// ContextWithSpan returns a copy of ctx carrying the given span.
func ContextWithSpan(ctx context.Context, span Span) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}
