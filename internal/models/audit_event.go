package models

import "time"

// Audit actions recorded by the auth subsystem.
const (
	AuditActionLogin          = "login"
	AuditActionLogout         = "logout"
	AuditActionPasswordChange = "password_change"
	AuditActionTwoFactorIssue = "two_factor_issue"
)

// AuditEvent is one append-only security event. Events are never mutated or
// deleted by this service.
type AuditEvent struct {
	ID              string            `db:"id" json:"id"`
	AdministratorID string            `db:"administrator_id" json:"administratorId"`
	Action          string            `db:"action" json:"action"`
	Metadata        map[string]string `db:"-" json:"metadata,omitempty"`
	SourceAddress   string            `db:"source_address" json:"sourceAddress"`
	ClientAgent     string            `db:"client_agent" json:"clientAgent"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
}
