package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/platformsec/rbacgate/internal/db/models"
	"github.com/platformsec/rbacgate/internal/tenantscope"
	"github.com/uptrace/bun"
)

// BunPrincipalRepository implements PrincipalRepository using Bun ORM.
// Every query is constrained to the active tenant scope; calling without an
// activated scope is an error, never an unscoped read.
type BunPrincipalRepository struct {
	db *bun.DB
}

// NewBunPrincipalRepository creates a new Bun-based principal repository
func NewBunPrincipalRepository(db *bun.DB) *BunPrincipalRepository {
	return &BunPrincipalRepository{db: db}
}

// Create inserts a new principal into the active tenant's partition
func (r *BunPrincipalRepository) Create(ctx context.Context, principal *models.Principal) error {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return err
	}
	if principal.Username == "" {
		return fmt.Errorf("principal username is required")
	}
	if principal.ID == "" {
		principal.ID = uuid.NewString()
	}
	principal.TenantID = tenant.ID

	_, err = r.db.NewInsert().
		Model(principal).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

// GetByUsername retrieves a principal by username within the active partition
func (r *BunPrincipalRepository) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return nil, err
	}

	principal := new(models.Principal)
	err = r.db.NewSelect().
		Model(principal).
		Where("tenant_id = ?", tenant.ID).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("principal %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("get principal by username: %w", err)
	}
	return principal, nil
}

// GetOrCreate resolves a principal by username within the active partition,
// creating it from the template on first sight. The UNIQUE constraint on
// (tenant_id, username) arbitrates concurrent creation; the loser re-fetches
// the winner's row.
func (r *BunPrincipalRepository) GetOrCreate(ctx context.Context, template *models.Principal) (*models.Principal, error) {
	principal, err := r.GetByUsername(ctx, template.Username)
	if err == nil {
		return principal, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err := r.Create(ctx, template); err != nil {
		if IsUniqueViolation(err) {
			return r.GetByUsername(ctx, template.Username)
		}
		return nil, err
	}
	return template, nil
}

// List retrieves all principals in the active partition
func (r *BunPrincipalRepository) List(ctx context.Context) ([]models.Principal, error) {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return nil, err
	}

	var principals []models.Principal
	err = r.db.NewSelect().
		Model(&principals).
		Where("tenant_id = ?", tenant.ID).
		Order("username ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	return principals, nil
}
