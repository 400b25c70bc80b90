package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin       = "LOGIN"
	AuditActionLoginFailed = "LOGIN_FAILED"
	AuditActionLockout     = "ACCOUNT_LOCKED"
	AuditActionSignup      = "SIGNUP"
	AuditActionLogout      = "LOGOUT"
	AuditActionUserDelete  = "USER_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string       `db:"id" json:"id"`
	ActorID    *string      `db:"actor_id" json:"actor_id,omitempty"`
	ActorKind  *AccountKind `db:"actor_kind" json:"actor_kind,omitempty"`
	Action     string       `db:"action" json:"action"`
	Resource   string       `db:"resource" json:"resource"`
	ResourceID *string      `db:"resource_id" json:"resource_id,omitempty"`
	Metadata   []byte       `db:"metadata" json:"metadata,omitempty"`
	IPAddress  string       `db:"ip_address" json:"ip_address"`
	UserAgent  string       `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
