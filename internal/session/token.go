package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by Parse for any token that cannot be trusted:
// bad signature, wrong algorithm, or malformed claims.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the JWT claim set carrying the session snapshot.
type Claims struct {
	AdministratorID string   `json:"adm"`
	Email           string   `json:"email"`
	Role            string   `json:"role"`
	Permissions     []string `json:"perms"`
	Principal       string   `json:"principal"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with an HS256 shared secret.
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec from the configured session secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Mint encodes the session into a signed token. Expiry is not baked into the
// token: the duration limit is a validation-time policy, enforced by the
// session service against the embedded issued-at timestamp.
func (c *Codec) Mint(s *Session) (string, error) {
	claims := &Claims{
		AdministratorID: s.AdministratorID,
		Email:           s.Email,
		Role:            s.Role,
		Permissions:     s.Permissions,
		Principal:       s.Principal,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       s.ID,
			Subject:  s.AdministratorID,
			IssuedAt: jwt.NewNumericDate(s.IssuedAt),
			Issuer:   "storefront-admin",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token signature and reconstructs the session snapshot.
// It does not judge expiry; that stays with the session service so the
// duration policy lives in exactly one place.
func (c *Codec) Parse(raw string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.AdministratorID == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	return &Session{
		ID:              claims.ID,
		AdministratorID: claims.AdministratorID,
		Email:           claims.Email,
		Role:            claims.Role,
		Permissions:     claims.Permissions,
		Principal:       claims.Principal,
		IssuedAt:        claims.IssuedAt.Time,
	}, nil
}
