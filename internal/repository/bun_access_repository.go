package repository

import (
	"context"
	"fmt"

	"github.com/platformsec/rbacgate/internal/db/models"
	"github.com/platformsec/rbacgate/internal/tenantscope"
	"github.com/uptrace/bun"
)

// BunAccessRepository implements AccessRepository using Bun ORM
type BunAccessRepository struct {
	db *bun.DB
}

// NewBunAccessRepository creates a new Bun-based access repository
func NewBunAccessRepository(db *bun.DB) *BunAccessRepository {
	return &BunAccessRepository{db: db}
}

// ListForPrincipal returns the distinct access entries granted to the
// principal through its group memberships, within the active partition.
//
// Traversal: principal → group_principals → policies (bound to those
// groups) → policy_roles → access entries of those roles. An access entry
// reachable through several paths appears once.
func (r *BunAccessRepository) ListForPrincipal(ctx context.Context, principalID string) ([]models.Access, error) {
	tenant, err := tenantscope.Require(ctx)
	if err != nil {
		return nil, err
	}

	var entries []models.Access
	err = r.db.NewSelect().
		Model(&entries).
		Relation("ResourceDefinitions").
		Distinct().
		Join("JOIN policy_roles AS plr ON plr.role_id = a.role_id").
		Join("JOIN policies AS p ON p.id = plr.policy_id").
		Join("JOIN group_principals AS gp ON gp.group_id = p.group_id").
		Where("a.tenant_id = ?", tenant.ID).
		Where("p.tenant_id = ?", tenant.ID).
		Where("gp.principal_id = ?", principalID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list access for principal: %w", err)
	}
	return entries, nil
}
