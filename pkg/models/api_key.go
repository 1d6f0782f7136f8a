package models

import (
	"time"

	"github.com/google/uuid"
)

// Account roles carried on API keys. Premium uploads are queued ahead of
// standard ones.
const (
	RoleStandard = "standard"
	RolePremium  = "premium"
)

// APIKey authenticates a user of the upload API. Only a bcrypt hash of the
// raw key is stored; lookups go through the first eight characters (the
// prefix) to avoid a full-table bcrypt scan.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	UserID     uuid.UUID  `db:"user_id"      json:"user_id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	Role       string     `db:"role"         json:"role"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

// PriorityForRole maps an account role to its queue priority.
func PriorityForRole(role string) int {
	if role == RolePremium {
		return PriorityPremium
	}
	return PriorityStandard
}
