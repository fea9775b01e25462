package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Administrator roles, ordered by privilege. SuperAdmin implicitly passes
// every permission check; the permissions set is ignored for it.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
)

// Administrator represents an operator allowed into the admin panel.
// Records are provisioned out of band; this service only ever writes
// last_login_at.
type Administrator struct {
	ID               string         `db:"id" json:"id"`
	Email            string         `db:"email" json:"email"`
	PasswordHash     string         `db:"password_hash" json:"-"`
	Name             string         `db:"name" json:"name"`
	Role             string         `db:"role" json:"role"`
	Permissions      pq.StringArray `db:"permissions" json:"permissions"`
	IsActive         bool           `db:"is_active" json:"isActive"`
	TwoFactorEnabled bool           `db:"two_factor_enabled" json:"twoFactorEnabled"`
	LastLoginAt      sql.NullTime   `db:"last_login_at" json:"lastLoginAt"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// Can reports whether the administrator's own record grants the permission.
// Role shortcuts (super_admin) are applied by the session layer, not here.
func (a *Administrator) Can(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
