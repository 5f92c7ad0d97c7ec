package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Group is a named collection of principals within a tenant.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID          string    `bun:"id,pk,type:uuid" json:"id"`
	TenantID    string    `bun:"tenant_id,notnull,type:uuid" json:"-"` // FK to tenants(id)
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Principals []Principal `bun:"m2m:group_principals,join:Group=Principal" json:"principals,omitempty"`
}

// GroupPrincipal joins principals to groups.
type GroupPrincipal struct {
	bun.BaseModel `bun:"table:group_principals,alias:gp"`

	GroupID     string     `bun:"group_id,pk,type:uuid"` // FK to groups(id)
	PrincipalID string     `bun:"principal_id,pk,type:uuid"` // FK to principals(id)
	Group       *Group     `bun:"rel:belongs-to,join:group_id=id"`
	Principal   *Principal `bun:"rel:belongs-to,join:principal_id=id"`
}

// Role names a set of access entries within a tenant.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID          string    `bun:"id,pk,type:uuid" json:"id"`
	TenantID    string    `bun:"tenant_id,notnull,type:uuid" json:"-"` // FK to tenants(id)
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	System      bool      `bun:"system,notnull,default:false" json:"is_system"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Access []Access `bun:"rel:has-many,join:id=role_id" json:"access,omitempty"`
}

// Policy binds a group to a set of roles within a tenant.
type Policy struct {
	bun.BaseModel `bun:"table:policies,alias:p"`

	ID          string    `bun:"id,pk,type:uuid" json:"id"`
	TenantID    string    `bun:"tenant_id,notnull,type:uuid" json:"-"` // FK to tenants(id)
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	GroupID     string    `bun:"group_id,notnull,type:uuid" json:"group_id"` // FK to groups(id)
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Group *Group `bun:"rel:belongs-to,join:group_id=id" json:"group,omitempty"`
	Roles []Role `bun:"m2m:policy_roles,join:Policy=Role" json:"roles,omitempty"`
}

// PolicyRole joins roles to policies.
type PolicyRole struct {
	bun.BaseModel `bun:"table:policy_roles,alias:plr"`

	PolicyID string  `bun:"policy_id,pk,type:uuid"` // FK to policies(id)
	RoleID   string  `bun:"role_id,pk,type:uuid"`   // FK to roles(id)
	Policy   *Policy `bun:"rel:belongs-to,join:policy_id=id"`
	Role     *Role   `bun:"rel:belongs-to,join:role_id=id"`
}

// Access grants one permission to a role. Permission strings use the
// "application:resource:verb" format, e.g. "rbac:group:read".
type Access struct {
	bun.BaseModel `bun:"table:access,alias:a"`

	ID         string `bun:"id,pk,type:uuid" json:"id"`
	TenantID   string `bun:"tenant_id,notnull,type:uuid" json:"-"` // FK to tenants(id)
	RoleID     string `bun:"role_id,notnull,type:uuid" json:"role_id"` // FK to roles(id)
	Permission string `bun:"permission,notnull" json:"permission"`

	ResourceDefinitions []ResourceDefinition `bun:"rel:has-many,join:id=access_id" json:"resource_definitions,omitempty"`
}

// ResourceDefinition narrows an access entry to specific resource
// identifiers. An access entry with no resource definitions grants the
// permission on all resources of its kind.
type ResourceDefinition struct {
	bun.BaseModel `bun:"table:resource_definitions,alias:rd"`

	ID              string          `bun:"id,pk,type:uuid" json:"id"`
	AccessID        string          `bun:"access_id,notnull,type:uuid" json:"-"` // FK to access(id)
	AttributeFilter AttributeFilter `bun:"attribute_filter,type:jsonb,notnull,default:'{}'" json:"attribute_filter"`
}

// AttributeFilter is the stored filter for a resource definition, e.g.
// {"key": "group.uuid", "operation": "in", "value": ["<uuid>", ...]}.
type AttributeFilter struct {
	Key       string   `json:"key"`
	Operation string   `json:"operation"`
	Values    []string `json:"value"`
}

// Scan implements sql.Scanner for reading from database
func (f *AttributeFilter) Scan(value any) error {
	if value == nil {
		*f = AttributeFilter{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan AttributeFilter: expected []byte, got %T", value)
	}
	return json.Unmarshal(bytes, f)
}

// Value implements driver.Valuer for writing to database
func (f AttributeFilter) Value() (driver.Value, error) {
	bytes, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}
