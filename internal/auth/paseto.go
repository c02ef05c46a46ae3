package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"aidanwoods.dev/go-paseto"
)

// PasetoSigner issues encrypted PASETO v4.local tokens.
type PasetoSigner struct {
	key      paseto.V4SymmetricKey
	ttl      time.Duration
	issuer   string
	audience string
}

// NewPasetoSigner creates a PASETO signer keyed from cfg.Secret.
func NewPasetoSigner(cfg SignerConfig) (*PasetoSigner, error) {
	keyBytes, err := DeriveKey(cfg.Secret, FormatPASETO)
	if err != nil {
		return nil, err
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &PasetoSigner{
		key:      key,
		ttl:      cfg.TTL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}, nil
}

// Sign implements Signer.
func (s *PasetoSigner) Sign(userID, username string) (*Token, error) {
	c := newClaims(userID, username, s.ttl)

	token := paseto.NewToken()
	if s.issuer != "" {
		token.SetIssuer(s.issuer)
	}
	if s.audience != "" {
		token.SetAudience(s.audience)
	}
	token.SetSubject(c.UserID)
	token.SetIssuedAt(c.IssuedAt)
	token.SetNotBefore(c.IssuedAt)
	token.SetExpiration(c.ExpiresAt)
	token.SetJti(c.TokenID)

	//nolint:errcheck // Token.Set only errors on values that cannot be marshalled
	_ = token.Set("id", c.UserID)
	//nolint:errcheck // Token.Set only errors on values that cannot be marshalled
	_ = token.Set("username", c.Username)

	return &Token{Value: token.V4Encrypt(s.key, nil), Claims: c}, nil
}

// Verify implements Signer.
func (s *PasetoSigner) Verify(raw string) (*Claims, error) {
	parser := paseto.NewParser()
	if s.audience != "" {
		parser.AddRule(paseto.ForAudience(s.audience))
	}
	if s.issuer != "" {
		parser.AddRule(paseto.IssuedBy(s.issuer))
	}
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(time.Now()))

	token, err := parser.ParseV4Local(s.key, raw, nil)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "expire") {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var c Claims
	if err := json.Unmarshal(token.ClaimsJSON(), &c); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %w", ErrInvalidToken, err)
	}
	if c.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &c, nil
}
