package middleware

import "context"

type contextKey struct{ name string }

var (
	userIDKey    = contextKey{"user_id"}
	sessionIDKey = contextKey{"session_id"}
	rolesKey     = contextKey{"roles"}
)

// WithIdentity returns a context with user_id, session_id, and roles set.
// Handlers and services can read these via GetUserID, GetSessionID, GetRoles.
func WithIdentity(ctx context.Context, userID, sessionID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	ctx = context.WithValue(ctx, rolesKey, roles)
	return ctx
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// GetRoles returns the role names from context and true if set; otherwise nil, false.
func GetRoles(ctx context.Context) ([]string, bool) {
	v, ok := ctx.Value(rolesKey).([]string)
	return v, ok
}

var clientIPKey = contextKey{"client_ip"}

// WithClientIP returns a context carrying the client address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns the client address from context, or "" if unset.
func GetClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
