package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims of an ID token issued by the auth provider.
// The subject is the user's uid.
type TokenClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}
