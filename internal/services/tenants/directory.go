// Package tenants resolves account identifiers to tenant records.
package tenants

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/platformsec/rbacgate/internal/db/models"
	"github.com/platformsec/rbacgate/internal/repository"
)

// ErrNoAccount is returned when resolution is attempted without an account
// identifier. Callers decide whether that is tolerable (anonymous paths) or
// an authentication failure.
var ErrNoAccount = errors.New("no account identifier")

// Directory resolves account identifiers to tenants, creating tenant records
// lazily on first sight.
//
// A process-local LRU cache sits in front of the store, keyed by the derived
// schema name. The cache only ever holds records that were committed to the
// store; the store's uniqueness constraint remains the single arbiter of
// concurrent first-creation, so two processes can never cache different rows
// for the same account.
type Directory struct {
	tenants repository.TenantRepository
	cache   *lru.Cache[string, *models.Tenant]
}

// NewDirectory creates a tenant directory with the given cache capacity.
func NewDirectory(tenants repository.TenantRepository, cacheSize int) (*Directory, error) {
	cache, err := lru.New[string, *models.Tenant](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create tenant cache: %w", err)
	}
	return &Directory{tenants: tenants, cache: cache}, nil
}

// GetOrCreate resolves the tenant for an account, creating it on first
// sight. Used by the end-user path, where a previously unseen account means
// a new customer rather than an error.
func (d *Directory) GetOrCreate(ctx context.Context, accountID string) (*models.Tenant, error) {
	if accountID == "" {
		return nil, ErrNoAccount
	}

	schema := models.SchemaName(accountID)
	if tenant, ok := d.cache.Get(schema); ok {
		return tenant, nil
	}

	tenant, err := d.tenants.GetOrCreate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	d.cache.Add(schema, tenant)
	return tenant, nil
}

// Get resolves the tenant for an account without creating it. Used by the
// service-to-service path, where a valid credential targeting an unknown
// account is "not found", never an implicit provision.
// Returns repository.ErrNotFound (wrapped) on a miss.
func (d *Directory) Get(ctx context.Context, accountID string) (*models.Tenant, error) {
	if accountID == "" {
		return nil, ErrNoAccount
	}

	schema := models.SchemaName(accountID)
	if tenant, ok := d.cache.Get(schema); ok {
		return tenant, nil
	}

	tenant, err := d.tenants.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	d.cache.Add(schema, tenant)
	return tenant, nil
}
