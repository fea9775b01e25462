package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateOpaqueToken generates a random token with the given prefix.
// Format: prefix_randomhex
// Example: sf_principal_a1b2c3d4e5f6...
func GenerateOpaqueToken(prefix string) (string, error) {
	b := make([]byte, 32) // 64 char hex
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b)), nil
}

// GeneratePrincipalToken generates an opaque identity principal handle: sf_principal_xxx
func GeneratePrincipalToken() (string, error) {
	return GenerateOpaqueToken("sf_principal")
}

// GenerateNumericCode generates a zero-padded numeric code of the given length
// using crypto/rand. Used for second-factor verification codes.
func GenerateNumericCode(length int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < length; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
