package models

import "time"

// SecondFactorCode is a short-lived, single-use verification code tied to an
// administrator. Once used flips to true it never authorizes a login again.
type SecondFactorCode struct {
	ID              string    `db:"id" json:"id"`
	AdministratorID string    `db:"administrator_id" json:"administratorId"`
	Code            string    `db:"code" json:"-"`
	ExpiresAt       time.Time `db:"expires_at" json:"expiresAt"`
	Used            bool      `db:"used" json:"used"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}
