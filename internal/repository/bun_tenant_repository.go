package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/platformsec/rbacgate/internal/db/models"
	"github.com/uptrace/bun"
)

// BunTenantRepository implements TenantRepository using Bun ORM
type BunTenantRepository struct {
	db *bun.DB
}

// NewBunTenantRepository creates a new Bun-based tenant repository
func NewBunTenantRepository(db *bun.DB) *BunTenantRepository {
	return &BunTenantRepository{db: db}
}

// Create inserts a new tenant. The schema name is derived from the account
// before insert; callers never pick it.
func (r *BunTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.AccountID == "" {
		return fmt.Errorf("tenant account ID is required")
	}
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	tenant.SchemaName = models.SchemaName(tenant.AccountID)

	_, err := r.db.NewInsert().
		Model(tenant).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// GetByAccount retrieves a tenant by its account identifier
func (r *BunTenantRepository) GetByAccount(ctx context.Context, accountID string) (*models.Tenant, error) {
	tenant := new(models.Tenant)
	err := r.db.NewSelect().
		Model(tenant).
		Where("account_id = ?", accountID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant for account %s: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant by account: %w", err)
	}
	return tenant, nil
}

// GetBySchema retrieves a tenant by its derived schema name
func (r *BunTenantRepository) GetBySchema(ctx context.Context, schemaName string) (*models.Tenant, error) {
	tenant := new(models.Tenant)
	err := r.db.NewSelect().
		Model(tenant).
		Where("schema_name = ?", schemaName).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %s: %w", schemaName, ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant by schema: %w", err)
	}
	return tenant, nil
}

// GetOrCreate resolves the tenant for an account, creating it on first sight.
//
// The sequence is lookup, then try-create, then re-fetch on conflict. The
// store's UNIQUE constraint on account_id is the arbiter when two workers
// (possibly in different processes) race on first creation: exactly one
// insert commits, the loser observes the uniqueness conflict and returns the
// winner's record instead of an error.
func (r *BunTenantRepository) GetOrCreate(ctx context.Context, accountID string) (*models.Tenant, error) {
	if accountID == "" {
		return nil, fmt.Errorf("tenant account ID is required")
	}

	tenant, err := r.GetByAccount(ctx, accountID)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	created := &models.Tenant{AccountID: accountID}
	if err := r.Create(ctx, created); err != nil {
		if IsUniqueViolation(err) {
			// Lost the creation race; the committed row must now be visible.
			return r.GetByAccount(ctx, accountID)
		}
		return nil, err
	}
	return created, nil
}
