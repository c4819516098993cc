package middleware

import "context"

type contextKeyType string

const userIDKey contextKeyType = "user_id"

// ContextWithUserID stores the acting user's ID in the request context so
// downstream middleware (RequestLogger) can pick it up.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
