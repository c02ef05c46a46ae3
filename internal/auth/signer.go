package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Token formats.
const (
	FormatJWT    = "jwt"
	FormatPASETO = "paseto"
)

// DefaultTokenTTL is the lifetime of an access token.
const DefaultTokenTTL = time.Hour

// Errors returned by Verify. Both are reported to clients as an invalid token.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Signer issues and verifies stateless access tokens.
type Signer interface {
	Sign(userID, username string) (*Token, error)
	Verify(raw string) (*Claims, error)
}

// SignerConfig configures NewSigner.
type SignerConfig struct {
	Format   string
	Secret   string
	TTL      time.Duration
	Issuer   string
	Audience string
}

// NewSigner returns the Signer for cfg.Format.
func NewSigner(cfg SignerConfig) (Signer, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}

	switch strings.ToLower(cfg.Format) {
	case "", FormatJWT:
		return NewJWTSigner(cfg)
	case FormatPASETO:
		return NewPasetoSigner(cfg)
	default:
		return nil, fmt.Errorf("unknown token format %q", cfg.Format)
	}
}

// newClaims stamps a fresh set of claims.
func newClaims(userID, username string, ttl time.Duration) Claims {
	now := time.Now().UTC().Truncate(time.Second)
	return Claims{
		UserID:    userID,
		Username:  username,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}
