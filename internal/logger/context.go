package logger

import "context"

type requestIDKey struct{}

// WithRequestID stores a request ID on the context. The request-ID middleware
// sets it for every admin API call so log lines can be correlated.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID on the context, or "" when none is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
