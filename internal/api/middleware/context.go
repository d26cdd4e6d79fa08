package middleware

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const requestIDKey contextKey = "request_id"

// GetRequestID extracts the request id from ctx, returning "unknown" if
// none was set (e.g. in a test calling a handler directly).
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// SetRequestID attaches id to ctx.
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// generateRequestID mints a fresh id for a request carrying none.
func generateRequestID() string {
	return uuid.NewString()
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
