package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/platformsec/rbacgate/internal/db/models"
	"github.com/platformsec/rbacgate/internal/identity"
	"github.com/platformsec/rbacgate/internal/repository"
)

// ErrNoIdentity is returned when resolution is attempted without an
// authenticated identity. The middleware rejects such requests before
// resolution; hitting this error from a handler indicates a wiring bug.
var ErrNoIdentity = errors.New("no identity to resolve")

// Resolver maps validated identities to principal records within the active
// tenant partition, auto-provisioning principals for identities seen for the
// first time.
type Resolver struct {
	principals repository.PrincipalRepository
}

// NewResolver creates a principal resolver.
func NewResolver(principals repository.PrincipalRepository) *Resolver {
	return &Resolver{principals: principals}
}

// Resolve returns the principal record for the identity, creating it on
// first sight. The caller must have validated the identity (service PSKs in
// particular) and activated the tenant's scope beforehand; the repository
// rejects unscoped calls.
func (r *Resolver) Resolve(ctx context.Context, ident *identity.Identity) (*models.Principal, error) {
	switch {
	case ident == nil:
		return nil, ErrNoIdentity

	case ident.User != nil:
		principal, err := r.principals.GetOrCreate(ctx, &models.Principal{
			Username: ident.User.Username,
			Email:    ident.User.Email,
			OrgAdmin: ident.User.OrgAdmin,
			System:   false,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve user principal: %w", err)
		}
		return principal, nil

	case ident.Service != nil:
		// Service principals are keyed by the registered client ID.
		principal, err := r.principals.GetOrCreate(ctx, &models.Principal{
			Username: ident.Service.ClientID,
			System:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve service principal: %w", err)
		}
		return principal, nil

	default:
		return nil, ErrNoIdentity
	}
}
