package auth

import "context"

type contextKey string

const (
	identityKey        contextKey = "identity"
	internalRequestKey contextKey = "internal_request"
)

const RoleAdmin = "admin"

type Identity struct {
	UserID int64
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// WithIdentity sets the caller into context (called by middleware).
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserIDFrom returns 0, false for anonymous callers.
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := IdentityFrom(ctx)
	if !ok || id.UserID <= 0 {
		return 0, false
	}
	return id.UserID, true
}

func WithInternalRequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, internalRequestKey, true)
}

func IsInternalRequest(ctx context.Context) bool {
	v, _ := ctx.Value(internalRequestKey).(bool)
	return v
}
