// Package auth provides password hashing and signed access tokens.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// Symmetric keys for both token formats are 256 bits.
	keyLength = 32

	// MinSecretLength is the shortest signing secret accepted.
	MinSecretLength = 16
)

// DeriveKey expands the configured signing secret into a key dedicated to
// one purpose, so the JWT and PASETO formats never share key material.
func DeriveKey(secret, purpose string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("signing secret is empty")
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d characters", MinSecretLength)
	}

	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("catalog-server/"+purpose))
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", purpose, err)
	}
	return key, nil
}
