package shared

import "context"

type sessionContextKey struct{}

type viewerContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithViewer stores the viewing identity resolved by the
// impersonation middleware. Read paths render this user's data; writes and
// audit entries keep using the session user.
func ContextWithViewer(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, viewerContextKey{}, userID)
}

// ViewerFromContext returns the viewing identity, if resolved.
func ViewerFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(viewerContextKey{}).(int64)
	return id, ok
}
