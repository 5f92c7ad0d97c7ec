package repository

import (
	"context"

	"github.com/platformsec/rbacgate/internal/db/models"
)

// TenantRepository exposes persistence operations for tenants. It is the one
// repository that operates outside any tenant scope: tenant rows live in the
// public partition and gate everything else.
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByAccount(ctx context.Context, accountID string) (*models.Tenant, error)
	GetBySchema(ctx context.Context, schemaName string) (*models.Tenant, error)
	// GetOrCreate resolves the tenant for an account, creating it on first
	// sight. Concurrent first-requests race on the store's uniqueness
	// constraint; the loser re-fetches the winner's record.
	GetOrCreate(ctx context.Context, accountID string) (*models.Tenant, error)
}

// PrincipalRepository exposes persistence operations for principals. All
// methods require an active tenant scope and never see rows from another
// partition.
type PrincipalRepository interface {
	Create(ctx context.Context, principal *models.Principal) error
	GetByUsername(ctx context.Context, username string) (*models.Principal, error)
	// GetOrCreate resolves a principal by username within the active
	// partition, creating it on first sight with the given template. Same
	// race policy as tenants.
	GetOrCreate(ctx context.Context, principal *models.Principal) (*models.Principal, error)
	List(ctx context.Context) ([]models.Principal, error)
}

// GroupRepository exposes persistence operations for groups within the
// active tenant scope.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id string) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	AddPrincipal(ctx context.Context, groupID, principalID string) error
}

// RoleRepository exposes persistence operations for roles within the active
// tenant scope.
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	AddAccess(ctx context.Context, access *models.Access) error
}

// PolicyRepository exposes persistence operations for policies within the
// active tenant scope.
type PolicyRepository interface {
	Create(ctx context.Context, policy *models.Policy) error
	GetByID(ctx context.Context, id string) (*models.Policy, error)
	List(ctx context.Context) ([]models.Policy, error)
	AddRole(ctx context.Context, policyID, roleID string) error
}

// AccessRepository resolves the access entries reachable by a principal
// through its group memberships. Read-only.
type AccessRepository interface {
	// ListForPrincipal returns the distinct access entries (with resource
	// definitions) granted to the principal via principal → groups →
	// policies → roles, within the active tenant scope.
	ListForPrincipal(ctx context.Context, principalID string) ([]models.Access, error)
}
