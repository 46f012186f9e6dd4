package logging

import "context"

type contextKey string

const requestIDKey = contextKey("requestID")

// WithRequestID returns a copy of ctx carrying id, used as the request_id log
// field by every stage handling the request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
