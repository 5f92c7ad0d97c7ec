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

// BunGroupRepository implements GroupRepository using Bun ORM
type BunGroupRepository struct {
	db *bun.DB
}

// NewBunGroupRepository creates a new Bun-based group repository
func NewBunGroupRepository(db *bun.DB) *BunGroupRepository {
	return &BunGroupRepository{db: db}
}

// Create inserts a new group into the active tenant's partition
func (r *BunGroupRepository) Create(ctx context.Context, group *models.Group) error {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return err
	}
	if group.Name == "" {
		return fmt.Errorf("group name is required")
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.TenantID = tenant.ID

	_, err = r.db.NewInsert().
		Model(group).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// GetByID retrieves a group by ID within the active partition
func (r *BunGroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return nil, err
	}

	group := new(models.Group)
	err = r.db.NewSelect().
		Model(group).
		Where("g.tenant_id = ?", tenant.ID).
		Where("g.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return group, nil
}

// List retrieves all groups in the active partition
func (r *BunGroupRepository) List(ctx context.Context) ([]models.Group, error) {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return nil, err
	}

	var groups []models.Group
	err = r.db.NewSelect().
		Model(&groups).
		Where("g.tenant_id = ?", tenant.ID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// AddPrincipal adds a principal to a group. Both rows are verified to be in
// the active partition before the membership is written.
func (r *BunGroupRepository) AddPrincipal(ctx context.Context, groupID, principalID string) error {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return err
	}

	exists, err := r.db.NewSelect().
		Model((*models.Group)(nil)).
		Where("g.tenant_id = ?", tenant.ID).
		Where("g.id = ?", groupID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check group: %w", err)
	}
	if !exists {
		return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}

	exists, err = r.db.NewSelect().
		Model((*models.Principal)(nil)).
		Where("tenant_id = ?", tenant.ID).
		Where("id = ?", principalID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check principal: %w", err)
	}
	if !exists {
		return fmt.Errorf("principal %s: %w", principalID, ErrNotFound)
	}

	membership := &models.GroupPrincipal{GroupID: groupID, PrincipalID: principalID}
	_, err = r.db.NewInsert().
		Model(membership).
		Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil // already a member
		}
		return fmt.Errorf("add principal to group: %w", err)
	}
	return nil
}
