package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtClaims is the wire payload of an HS256 token.
type jwtClaims struct {
	Username string `json:"username"`
	UserID   string `json:"id"`
	jwt.RegisteredClaims
}

// JWTSigner issues HS256 JSON Web Tokens.
type JWTSigner struct {
	key      []byte
	ttl      time.Duration
	issuer   string
	audience string
	parser   *jwt.Parser
}

// NewJWTSigner creates a JWT signer keyed from cfg.Secret.
func NewJWTSigner(cfg SignerConfig) (*JWTSigner, error) {
	key, err := DeriveKey(cfg.Secret, FormatJWT)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTSigner{
		key:      key,
		ttl:      cfg.TTL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// Sign implements Signer.
func (s *JWTSigner) Sign(userID, username string) (*Token, error) {
	c := newClaims(userID, username, s.ttl)

	wire := jwtClaims{
		Username: c.Username,
		UserID:   c.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   c.UserID,
			ID:        c.TokenID,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}
	if s.audience != "" {
		wire.Audience = jwt.ClaimStrings{s.audience}
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Value: value, Claims: c}, nil
}

// Verify implements Signer.
func (s *JWTSigner) Verify(raw string) (*Claims, error) {
	var wire jwtClaims
	token, err := s.parser.ParseWithClaims(raw, &wire, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || wire.UserID == "" {
		return nil, ErrInvalidToken
	}

	c := &Claims{
		UserID:   wire.UserID,
		Username: wire.Username,
		TokenID:  wire.ID,
	}
	if wire.IssuedAt != nil {
		c.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		c.ExpiresAt = wire.ExpiresAt.Time
	}
	return c, nil
}
