// Package tenantscope tracks which tenant partition is active for the
// current request.
//
// The active scope is explicit request state carried on the context, never a
// process global: two requests on different goroutines can never observe each
// other's partition. Activation returns a Guard whose Release must run on
// every exit path (the middleware defers it) so a reused execution context
// always returns to the public scope, even when the handler panics.
package tenantscope

import (
	"context"
	"errors"

	"github.com/platformsec/rbacgate/internal/db/models"
)

// ErrNotActive is returned when a tenant-scoped operation runs without an
// activated partition. Repositories fail closed on it rather than falling
// back to an unscoped query.
var ErrNotActive = errors.New("no tenant scope active")

type scopeContextKey struct{}

// scopeState is shared between the context and the Guard so that releasing
// the guard deactivates the scope for every holder of the derived context.
type scopeState struct {
	tenant *models.Tenant
	active bool
}

// Guard represents ownership of an activated tenant scope.
type Guard struct {
	state *scopeState
}

// Release restores the public scope. Safe to call more than once; only the
// first call has an effect.
func (g *Guard) Release() {
	if g == nil || g.state == nil {
		return
	}
	g.state.active = false
	g.state.tenant = nil
}

// Activate derives a context with the tenant's partition active and returns
// the Guard that owns the activation. Callers must defer Guard.Release.
func Activate(ctx context.Context, tenant *models.Tenant) (context.Context, *Guard) {
	state := &scopeState{tenant: tenant, active: true}
	return context.WithValue(ctx, scopeContextKey{}, state), &Guard{state: state}
}

// Tenant returns the tenant whose partition is active, if any.
func Tenant(ctx context.Context) (*models.Tenant, bool) {
	state, ok := ctx.Value(scopeContextKey{}).(*scopeState)
	if !ok || !state.active || state.tenant == nil {
		return nil, false
	}
	return state.tenant, true
}

// Require returns the active tenant or ErrNotActive.
func Require(ctx context.Context) (*models.Tenant, error) {
	tenant, ok := Tenant(ctx)
	if !ok {
		return nil, ErrNotActive
	}
	return tenant, nil
}
