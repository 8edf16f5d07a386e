package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates access and refresh tokens inside the signed
// payload so one kind cannot be replayed as the other.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// GoogleLoginRequest carries the Google-issued ID token from the client.
type GoogleLoginRequest struct {
	Token string `json:"token" validate:"required"`
}

// TokenResponse returns the issued access token and its remaining lifetime
// in seconds. The refresh token is delivered only via an HttpOnly cookie.
type TokenResponse struct {
	Access    string `json:"access"`
	ExpiresIn int64  `json:"expires_in"`
}

// Identity is the verified claim extracted from a Google ID token.
type Identity struct {
	Email   string
	Name    *string
	Picture *string
}

// SessionClaims is the JWT payload for locally issued session tokens.
type SessionClaims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}
