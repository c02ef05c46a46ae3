package auth

import (
	"time"
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string    `json:"id"`
	Username  string    `json:"username"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Token is a signed access token together with its claims.
type Token struct {
	Value  string
	Claims Claims
}
