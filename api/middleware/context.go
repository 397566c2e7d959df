package middleware

import (
	"context"

	"github.com/mylagoscommunity/cart-service/internal/cart"
)

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxIdentity  contextKey = "identity"
)

// SessionIDFromContext returns the browser session id, if the Session
// middleware ran.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(ctxSessionID).(string)
	return v, ok && v != ""
}

// MustSessionID returns the browser session id and panics when the Session
// middleware was not installed on the route.
func MustSessionID(ctx context.Context) string {
	id, ok := SessionIDFromContext(ctx)
	if !ok {
		panic("middleware: session id requested outside the Session middleware")
	}
	return id
}

// WithSessionID injects the session identifier into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// IdentityFromContext returns the caller identity; guests get the zero identity.
func IdentityFromContext(ctx context.Context) cart.Identity {
	if ctx == nil {
		return cart.Guest()
	}
	if v, ok := ctx.Value(ctxIdentity).(cart.Identity); ok {
		return v
	}
	return cart.Guest()
}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, identity cart.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}
