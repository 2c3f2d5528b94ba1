package auth

import "context"

// Identity is the verified caller of a request. It is built only from claims
// that passed VerifyClaims and is trusted without re-reading the users table,
// so role changes apply once the caller's current token expires.
type Identity struct {
	UserID  string
	BadgeID string
	IsAdmin bool
}

type identityContextKey struct{}

// WithIdentity stores the verified identity on the context for downstream handlers.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the identity set by the Access Gate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}
