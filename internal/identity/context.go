package identity

import (
	"context"

	"github.com/platformsec/rbacgate/internal/db/models"
)

type principalContextKey struct{}

// SetPrincipalContext stores the resolved principal on the context for
// downstream consumers. The middleware guarantees every handler behind it
// sees a principal, so handlers never need a nil check.
func SetPrincipalContext(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext retrieves the resolved principal from the context.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*models.Principal)
	return principal, ok && principal != nil
}
