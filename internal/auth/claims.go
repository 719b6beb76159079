package auth

import (
	"time"
)

// ShareClaims represents the claims stored in a PASETO share session token.
// These are encrypted in v4.local tokens, so they're not readable without the key.
type ShareClaims struct {
	ShareID string `json:"share_id"`
	BookID  string `json:"book_id"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}
