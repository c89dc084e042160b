package common

import "context"

type contextKey string

// CorrelationIDKey carries the per-request correlation identifier. It is set
// by the HTTP middleware and forwarded on every outbound provider call.
const CorrelationIDKey contextKey = "correlationId"

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return v
	}
	return ""
}
