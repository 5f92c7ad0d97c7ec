package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/platformsec/rbacgate/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20250901000001, down_20250901000001)
}

// up_20250901000001 creates the full gateway schema: the public tenants
// table plus the tenant-partitioned RBAC tables. The uniqueness constraints
// here are load-bearing: concurrent first-creation of tenants and
// principals races on them and the loser re-fetches the winner's row.
func up_20250901000001(ctx context.Context, db *bun.DB) error {
	// 1. Tenants: the public partition. account_id and schema_name are both
	// unique; schema_name is derived from account_id but carries its own
	// constraint so the derivation can never silently collide.
	fmt.Print(" [up] creating tenants table...")
	_, err := db.NewCreateTable().
		Model((*models.Tenant)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create tenants table: %w", err)
	}
	fmt.Println(" OK")

	// 2. Principals: unique per tenant by username.
	fmt.Print(" [up] creating principals table...")
	_, err = db.NewCreateTable().
		Model((*models.Principal)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create principals table: %w", err)
	}
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_principals_tenant_username ON principals(tenant_id, username)`)
	if err != nil {
		return fmt.Errorf("failed to create principal uniqueness index: %w", err)
	}
	fmt.Println(" OK")

	// 3. Groups, roles, policies: unique per tenant by name.
	fmt.Print(" [up] creating management tables...")
	for _, model := range []any{
		(*models.Group)(nil),
		(*models.Role)(nil),
		(*models.Policy)(nil),
	} {
		_, err = db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create management table: %w", err)
		}
	}
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_groups_tenant_name ON groups(tenant_id, name)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_tenant_name ON roles(tenant_id, name)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_tenant_name ON policies(tenant_id, name)`,
	} {
		if _, err = db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create management uniqueness index: %w", err)
		}
	}
	fmt.Println(" OK")

	// 4. Access entries and resource definitions.
	fmt.Print(" [up] creating access tables...")
	_, err = db.NewCreateTable().
		Model((*models.Access)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create access table: %w", err)
	}
	_, err = db.NewCreateTable().
		Model((*models.ResourceDefinition)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create resource_definitions table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_access_role ON access(role_id)`)
	if err != nil {
		return fmt.Errorf("failed to create access role index: %w", err)
	}
	if IsPostgreSQL(db) {
		// GIN index for filter lookups on the JSONB column
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_resource_definitions_filter_gin ON resource_definitions USING gin (attribute_filter jsonb_path_ops)`)
		if err != nil {
			return fmt.Errorf("failed to create GIN index on attribute_filter: %w", err)
		}
	}
	fmt.Println(" OK")

	// 5. Join tables. Composite primary keys make duplicate memberships a
	// constraint violation, which the repositories treat as already-added.
	fmt.Print(" [up] creating join tables...")
	_, err = db.NewCreateTable().
		Model((*models.GroupPrincipal)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create group_principals table: %w", err)
	}
	_, err = db.NewCreateTable().
		Model((*models.PolicyRole)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create policy_roles table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20250901000001 drops all gateway tables in dependency order.
func down_20250901000001(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{
		(*models.PolicyRole)(nil),
		(*models.GroupPrincipal)(nil),
		(*models.ResourceDefinition)(nil),
		(*models.Access)(nil),
		(*models.Policy)(nil),
		(*models.Role)(nil),
		(*models.Group)(nil),
		(*models.Principal)(nil),
		(*models.Tenant)(nil),
	} {
		_, err := db.NewDropTable().
			Model(model).
			IfExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}
