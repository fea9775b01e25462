// Package identity abstracts the external identity store that owns operator
// credentials. The auth core never sees password hashes through this
// interface; it hands credentials over and gets back an opaque principal
// handle for the lifetime of the login.
package identity

import (
	"context"
	"errors"
)

// ErrPasswordRejected is returned for any credential failure. Unknown email
// and wrong password are deliberately indistinguishable.
var ErrPasswordRejected = errors.New("password rejected")

// ErrSessionNotLive is returned by VerifySession when the identity-store
// session behind a principal handle no longer exists.
var ErrSessionNotLive = errors.New("identity session not live")

// Store is the identity store contract.
type Store interface {
	// VerifyPassword checks credentials and, on success, opens an
	// identity-store session returning its opaque principal handle.
	VerifyPassword(ctx context.Context, email, password string) (string, error)

	// VerifySession checks that the identity-store session behind the
	// principal handle is still live.
	VerifySession(ctx context.Context, principal string) error

	// EndSession terminates the identity-store session. Ending an already
	// ended session is not an error.
	EndSession(ctx context.Context, principal string) error
}
