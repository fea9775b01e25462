package identity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bazaarhq/storefront-api/internal/utils"
)

// PasswordReader is the slice of the admin directory the local backend needs:
// a way to fetch the stored bcrypt hash for an email. Implemented by
// repository.AdministratorRepository.
type PasswordReader interface {
	GetPasswordHash(ctx context.Context, email string) (string, error)
}

// LocalStore verifies passwords against bcrypt hashes held in the
// administrators table. It is a single-process backend: principal handles
// live in memory, so multi-instance deployments should use the HTTP backend.
type LocalStore struct {
	passwords PasswordReader
	ttl       time.Duration

	mu         sync.Mutex
	principals map[string]time.Time // principal -> expiry
}

// NewLocalStore creates a LocalStore. ttl bounds how long a principal handle
// stays live; it should be at least the session duration limit.
func NewLocalStore(passwords PasswordReader, ttl time.Duration) *LocalStore {
	return &LocalStore{
		passwords:  passwords,
		ttl:        ttl,
		principals: make(map[string]time.Time),
	}
}

// VerifyPassword compares the supplied password against the stored bcrypt
// hash. Unknown emails burn a bcrypt comparison against a dummy hash so the
// caller cannot time-probe which emails exist.
func (s *LocalStore) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	hash, err := s.passwords.GetPasswordHash(ctx, email)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrPasswordRejected
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrPasswordRejected
	}

	principal, err := utils.GeneratePrincipalToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.principals[principal] = time.Now().Add(s.ttl)
	s.sweepLocked()
	s.mu.Unlock()

	return principal, nil
}

// VerifySession reports whether the principal handle is still live.
func (s *LocalStore) VerifySession(_ context.Context, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.principals[principal]
	if !ok || time.Now().After(expiry) {
		delete(s.principals, principal)
		return ErrSessionNotLive
	}
	return nil
}

// EndSession drops the principal handle. Unknown handles are a no-op.
func (s *LocalStore) EndSession(_ context.Context, principal string) error {
	s.mu.Lock()
	delete(s.principals, principal)
	s.mu.Unlock()
	return nil
}

// sweepLocked drops expired principals. Called with mu held; piggybacks on
// logins instead of running a background ticker.
func (s *LocalStore) sweepLocked() {
	now := time.Now()
	for p, expiry := range s.principals {
		if now.After(expiry) {
			delete(s.principals, p)
		}
	}
}

// dummyHash is a bcrypt hash of an unguessable random value, used to equalize
// timing for unknown emails.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
