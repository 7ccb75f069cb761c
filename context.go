package authkit

import "context"

type clientIPContextKey struct{}
type sessionContextKey struct{}

// WithClientIP attaches the caller's network address to ctx. The engine
// keys login rate limiting and audit events on it; without it, rate
// limiting is skipped for the request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithSession attaches the transport's session key to ctx — typically the
// value of a session cookie. CSRF tokens are bound to it.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func sessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	session, _ := ctx.Value(sessionContextKey{}).(string)
	return session
}
