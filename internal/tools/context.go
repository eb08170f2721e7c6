package tools

import "context"

// sessionIDKey is an unexported context key for zero-allocation type safety.
type sessionIDKey struct{}

// SessionIDFromContext retrieves the session identity from context.
// Returns empty string if not set. Tool telemetry is keyed by it.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// ContextWithSessionID stores the session identity in context. The
// conversation state machine injects it before each tool execution step.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}
