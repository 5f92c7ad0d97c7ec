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

// BunRoleRepository implements RoleRepository using Bun ORM
type BunRoleRepository struct {
	db *bun.DB
}

// NewBunRoleRepository creates a new Bun-based role repository
func NewBunRoleRepository(db *bun.DB) *BunRoleRepository {
	return &BunRoleRepository{db: db}
}

// Create inserts a new role into the active tenant's partition
func (r *BunRoleRepository) Create(ctx context.Context, role *models.Role) error {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return err
	}
	if role.Name == "" {
		return fmt.Errorf("role name is required")
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	role.TenantID = tenant.ID

	_, err = r.db.NewInsert().
		Model(role).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// GetByID retrieves a role (with its access entries) within the active partition
func (r *BunRoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return nil, err
	}

	role := new(models.Role)
	err = r.db.NewSelect().
		Model(role).
		Relation("Access").
		Where("r.tenant_id = ?", tenant.ID).
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// List retrieves all roles in the active partition
func (r *BunRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return nil, err
	}

	var roles []models.Role
	err = r.db.NewSelect().
		Model(&roles).
		Where("r.tenant_id = ?", tenant.ID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// AddAccess grants a permission to a role in the active partition
func (r *BunRoleRepository) AddAccess(ctx context.Context, access *models.Access) error {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return err
	}
	if access.Permission == "" {
		return fmt.Errorf("access permission is required")
	}

	exists, err := r.db.NewSelect().
		Model((*models.Role)(nil)).
		Where("r.tenant_id = ?", tenant.ID).
		Where("r.id = ?", access.RoleID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !exists {
		return fmt.Errorf("role %s: %w", access.RoleID, ErrNotFound)
	}

	if access.ID == "" {
		access.ID = uuid.NewString()
	}
	access.TenantID = tenant.ID

	_, err = r.db.NewInsert().
		Model(access).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("add access: %w", err)
	}

	for i := range access.ResourceDefinitions {
		rd := &access.ResourceDefinitions[i]
		if rd.ID == "" {
			rd.ID = uuid.NewString()
		}
		rd.AccessID = access.ID
		if _, err := r.db.NewInsert().Model(rd).Exec(ctx); err != nil {
			return fmt.Errorf("add resource definition: %w", err)
		}
	}
	return nil
}
