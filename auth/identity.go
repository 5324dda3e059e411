// Package auth extracts the client-side identity context from the
// credential token. The client never holds the signing key; the token is
// validated by the backend on every call, so claims are read without
// signature verification here.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"chat-sync/domain"
)

// Claims carried by the backend's tokens.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IdentityFromToken derives the user's identity from the JWT payload.
func IdentityFromToken(token string) (domain.Identity, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return domain.Identity{}, fmt.Errorf("parsing credential: %w", err)
	}
	if claims.UserID == 0 {
		return domain.Identity{}, fmt.Errorf("credential carries no user_id claim")
	}
	return domain.Identity{
		UserID:   domain.UserID(claims.UserID),
		Username: claims.Username,
		Token:    token,
	}, nil
}
