package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SchemaPrefix is prepended to an account identifier to derive the tenant's
// partition name. The derivation is a pure function: the same account always
// maps to the same schema name, across processes and restarts.
const SchemaPrefix = "acct"

// SchemaName derives the tenant partition name for an account identifier.
func SchemaName(accountID string) string {
	return SchemaPrefix + accountID
}

// Tenant represents one customer account's isolated data partition.
// Tenants are created lazily on the first authenticated request for a
// previously unseen account and are never deleted by the request path.
type Tenant struct {
	bun.BaseModel `bun:"table:tenants,alias:t"`

	ID         string    `bun:"id,pk,type:uuid" json:"id"`
	AccountID  string    `bun:"account_id,notnull,unique" json:"account_id"`
	SchemaName string    `bun:"schema_name,notnull,unique" json:"schema_name"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Principal represents an authenticated actor within a tenant's partition.
// Human users are keyed by username; service callers are keyed by their
// registered client identifier and carry the System flag.
type Principal struct {
	bun.BaseModel `bun:"table:principals,alias:pr"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	TenantID  string    `bun:"tenant_id,notnull,type:uuid" json:"-"` // FK to tenants(id)
	Username  string    `bun:"username,notnull" json:"username"`
	Email     string    `bun:"email" json:"email"`
	OrgAdmin  bool      `bun:"org_admin,notnull,default:false" json:"is_org_admin"`
	System    bool      `bun:"system,notnull,default:false" json:"is_system"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}
