package tenantscope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformsec/rbacgate/internal/db/models"
)

func testTenant() *models.Tenant {
	return &models.Tenant{ID: "tenant-1", AccountID: "10001", SchemaName: "acct10001"}
}

func TestActivate(t *testing.T) {
	ctx, guard := Activate(context.Background(), testTenant())
	defer guard.Release()

	tenant, ok := Tenant(ctx)
	require.True(t, ok)
	assert.Equal(t, "tenant-1", tenant.ID)

	got, err := Require(ctx)
	require.NoError(t, err)
	assert.Equal(t, tenant, got)
}

func TestRequire_NoScope(t *testing.T) {
	_, err := Require(context.Background())
	assert.ErrorIs(t, err, ErrNotActive)

	_, ok := Tenant(context.Background())
	assert.False(t, ok)
}

func TestRelease(t *testing.T) {
	ctx, guard := Activate(context.Background(), testTenant())

	guard.Release()

	// The derived context no longer exposes the tenant once released.
	_, ok := Tenant(ctx)
	assert.False(t, ok)

	_, err := Require(ctx)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestRelease_Idempotent(t *testing.T) {
	ctx, guard := Activate(context.Background(), testTenant())

	guard.Release()
	guard.Release()

	_, ok := Tenant(ctx)
	assert.False(t, ok)
}

func TestRelease_NilGuard(t *testing.T) {
	var guard *Guard
	assert.NotPanics(t, func() { guard.Release() })
}

func TestActivate_DerivedContextsShareRelease(t *testing.T) {
	ctx, guard := Activate(context.Background(), testTenant())
	child := context.WithValue(ctx, struct{ k string }{"k"}, "v")

	_, ok := Tenant(child)
	require.True(t, ok)

	// Releasing deactivates the scope for every context derived from the
	// activation, not just the one returned by Activate.
	guard.Release()
	_, ok = Tenant(child)
	assert.False(t, ok)
}

func TestActivate_ScopesAreIndependent(t *testing.T) {
	ctxA, guardA := Activate(context.Background(), testTenant())
	defer guardA.Release()

	other := &models.Tenant{ID: "tenant-2", AccountID: "20002", SchemaName: "acct20002"}
	ctxB, guardB := Activate(context.Background(), other)

	guardB.Release()

	// Releasing one request's scope never touches another's.
	tenant, ok := Tenant(ctxA)
	require.True(t, ok)
	assert.Equal(t, "tenant-1", tenant.ID)

	_, ok = Tenant(ctxB)
	assert.False(t, ok)
}
