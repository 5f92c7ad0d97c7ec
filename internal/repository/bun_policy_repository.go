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

// BunPolicyRepository implements PolicyRepository using Bun ORM
type BunPolicyRepository struct {
	db *bun.DB
}

// NewBunPolicyRepository creates a new Bun-based policy repository
func NewBunPolicyRepository(db *bun.DB) *BunPolicyRepository {
	return &BunPolicyRepository{db: db}
}

// Create inserts a new policy into the active tenant's partition. The bound
// group must already exist in the same partition.
func (r *BunPolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return err
	}
	if policy.Name == "" {
		return fmt.Errorf("policy name is required")
	}

	exists, err := r.db.NewSelect().
		Model((*models.Group)(nil)).
		Where("g.tenant_id = ?", tenant.ID).
		Where("g.id = ?", policy.GroupID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check group: %w", err)
	}
	if !exists {
		return fmt.Errorf("group %s: %w", policy.GroupID, ErrNotFound)
	}

	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	policy.TenantID = tenant.ID

	_, err = r.db.NewInsert().
		Model(policy).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create policy: %w", err)
	}
	return nil
}

// GetByID retrieves a policy within the active partition
func (r *BunPolicyRepository) GetByID(ctx context.Context, id string) (*models.Policy, error) {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return nil, err
	}

	policy := new(models.Policy)
	err = r.db.NewSelect().
		Model(policy).
		Where("p.tenant_id = ?", tenant.ID).
		Where("p.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return policy, nil
}

// List retrieves all policies in the active partition
func (r *BunPolicyRepository) List(ctx context.Context) ([]models.Policy, error) {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return nil, err
	}

	var policies []models.Policy
	err = r.db.NewSelect().
		Model(&policies).
		Where("p.tenant_id = ?", tenant.ID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return policies, nil
}

// AddRole binds a role to a policy. Both rows must be in the active partition.
func (r *BunPolicyRepository) AddRole(ctx context.Context, policyID, roleID string) error {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return err
	}

	exists, err := r.db.NewSelect().
		Model((*models.Policy)(nil)).
		Where("p.tenant_id = ?", tenant.ID).
		Where("p.id = ?", policyID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check policy: %w", err)
	}
	if !exists {
		return fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}

	exists, err = r.db.NewSelect().
		Model((*models.Role)(nil)).
		Where("r.tenant_id = ?", tenant.ID).
		Where("r.id = ?", roleID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !exists {
		return fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}

	binding := &models.PolicyRole{PolicyID: policyID, RoleID: roleID}
	_, err = r.db.NewInsert().
		Model(binding).
		Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil // already bound
		}
		return fmt.Errorf("add role to policy: %w", err)
	}
	return nil
}
