package gate

import (
	"context"

	authdomain "github.com/AlibekovAA/personal-manager/backend/internal/auth/domain"
)

type contextKey string

const identityKey contextKey = "auth_identity"

func WithIdentity(ctx context.Context, identity authdomain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached by Middleware. It is
// absent for anonymous requests on public routes.
func IdentityFromContext(ctx context.Context) (authdomain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(authdomain.Identity)
	return identity, ok
}
