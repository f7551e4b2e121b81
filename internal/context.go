package internal

import (
	"context"
	"slices"
	"time"
)

type ctxKey string

const (
	ContextUserKey     ctxKey = "userID"
	ContextIdentityKey ctxKey = "identity"
)

// Identity is the authenticated principal attached to a request once the
// bearer token, its session and the subject have all been resolved.
type Identity struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	AccessToken string   `json:"-"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasAnyRole reports whether at least one of roles is held. An empty list is
// always satisfied.
func (i *Identity) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if slices.Contains(i.Roles, role) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every listed permission is held.
func (i *Identity) HasAllPermissions(permissions ...string) bool {
	for _, permission := range permissions {
		if !slices.Contains(i.Permissions, permission) {
			return false
		}
	}
	return true
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(ContextUserKey).(string); ok {
		return userID
	}
	if identity, ok := IdentityFromContext(ctx); ok {
		return identity.UserID
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	ctx = context.WithValue(ctx, ContextIdentityKey, identity)
	return ContextWithUserID(ctx, identity.UserID)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(ContextIdentityKey).(*Identity)
	return identity, ok && identity != nil
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
