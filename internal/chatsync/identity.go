package chatsync

import (
	"github.com/golang-jwt/jwt/v4"

	"supportdesk/pkg/logger"
)

// IdentityProvider resolves the local user's email for self-message
// detection during reconciliation. An empty string means unknown; the
// reconciler then skips optimistic matching and treats every broadcast as
// coming from another participant.
type IdentityProvider interface {
	CurrentUserEmail() string
}

// StaticIdentity is an IdentityProvider with a fixed email, for callers
// that already hold a profile.
type StaticIdentity struct {
	Email string
}

func (s StaticIdentity) CurrentUserEmail() string { return s.Email }

// TokenIdentity recovers the email from the bearer token's claims. The
// token is decoded without signature verification: the value is only used
// to recognize the user's own messages locally, never for authorization.
type TokenIdentity struct {
	email string
}

func NewTokenIdentity(token string) *TokenIdentity {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logger.Debug("chatsync: could not decode bearer token claims: %v", err)
		return &TokenIdentity{}
	}
	email, _ := claims["email"].(string)
	return &TokenIdentity{email: email}
}

func (t *TokenIdentity) CurrentUserEmail() string { return t.email }
