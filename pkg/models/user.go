package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the local copy of an identity-provider user, used for member listings
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name,omitempty" db:"name"`
	Avatar    string    `json:"avatar,omitempty" db:"avatar"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserSyncRequest is the profile payload the client sends after sign-in
type UserSyncRequest struct {
	Name   string `json:"name" validate:"max=120"`
	Avatar string `json:"avatar" validate:"omitempty,url,max=2048"`
}

// TokenType 令牌类型
const (
	TokenTypeAccess = "access"
)

// TokenClaims represents the JWT claims issued by the identity provider.
// The subject is the user id.
type TokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}
