package common

import (
	"context"
	"slices"
)

// Session is the explicit identity value resolved once by the auth
// middleware and handed to anything that needs the caller's identity or
// roles. Nothing below the middleware reads ambient storage.
type Session struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the session carries the given role.
func (s Session) HasRole(role string) bool {
	return slices.Contains(s.Roles, role)
}

type ctxKey string

const sessionKey ctxKey = "auth/session"

// WithSession stores the resolved session on the context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom extracts the session from the context if present.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

// UserID is a convenience accessor for the authenticated user identifier.
func UserID(ctx context.Context) (string, bool) {
	s, ok := SessionFrom(ctx)
	if !ok || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}
