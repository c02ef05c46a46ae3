package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))
	assert.True(t, VerifyPassword(hash, "secret"))
	assert.False(t, VerifyPassword(hash, "Secret"))
	assert.False(t, VerifyPassword(hash, ""))
}

func TestHashPassword_UniqueSalt(t *testing.T) {
	a, err := HashPassword("secret")
	require.NoError(t, err)
	b, err := HashPassword("secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHashPassword_Rejects(t *testing.T) {
	_, err := HashPassword("")
	require.Error(t, err)

	_, err = HashPassword(strings.Repeat("x", MaxPasswordLength+1))
	require.Error(t, err)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	tests := []string{
		"",
		"plain",
		"$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=1$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA",
	}

	for _, hash := range tests {
		assert.False(t, VerifyPassword(hash, "secret"), "hash %q", hash)
	}
}

func TestBurnPasswordCheck(t *testing.T) {
	assert.NotPanics(t, func() { BurnPasswordCheck("anything") })
}
