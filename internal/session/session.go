// Package session defines the locally-held admin session and its signed
// wire form. A session is minted once at login and from then on travels
// with the client as a signed token; nothing is kept server-side, so every
// instance can validate any session statelessly.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Session is a time-bounded proof of a successful admin login. It carries a
// snapshot of the administrator taken at issuance; the snapshot is only
// re-read from the directory during validation, not on permission checks.
type Session struct {
	ID              string
	AdministratorID string
	Email           string
	Role            string
	Permissions     []string
	// Principal is the opaque identity-store handle for this login, kept so
	// logout and liveness checks can reach the identity store.
	Principal string
	IssuedAt  time.Time
}

// Age returns how long the session has been alive at the given instant.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.IssuedAt)
}

// Expired reports whether the session has outlived the duration limit.
func (s *Session) Expired(now time.Time, limit time.Duration) bool {
	return s.Age(now) > limit
}

// NewSessionID generates a cryptographically random session identifier
// (32 bytes, hex encoded). Session IDs are never derived from the identity
// store; they are minted locally.
func NewSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
