package chatsync

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIdentityDecodesEmailClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": "agent@example.com",
	})
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	identity := NewTokenIdentity(signed)
	assert.Equal(t, "agent@example.com", identity.CurrentUserEmail())
}

func TestTokenIdentityWithoutEmailClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	identity := NewTokenIdentity(signed)
	assert.Equal(t, "", identity.CurrentUserEmail())
}

func TestTokenIdentityWithGarbageToken(t *testing.T) {
	identity := NewTokenIdentity("not-a-jwt")
	assert.Equal(t, "", identity.CurrentUserEmail())
}

func TestStaticIdentity(t *testing.T) {
	assert.Equal(t, "me@example.com", StaticIdentity{Email: "me@example.com"}.CurrentUserEmail())
	assert.Equal(t, "", StaticIdentity{}.CurrentUserEmail())
}
