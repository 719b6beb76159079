package auth

import (
	"encoding/json/v2"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/id"
)

const (
	tokenIssuer   = "shiori-server"
	tokenAudience = "shiori-share"

	// PASETO v4 symmetric key requirement.
	keyBytesSize = 32 // 256 bits
)

// TokenService issues and verifies PASETO share session tokens. A session
// token is handed out after a password-protected share has been unlocked,
// so the password is presented once per session instead of per request.
type TokenService struct {
	symmetricKey    paseto.V4SymmetricKey
	sessionDuration time.Duration
}

// NewTokenService creates a new token service with the given configuration.
// The key comes from LoadOrGenerateKey and must be exactly 32 bytes.
func NewTokenService(keyBytes []byte, sessionDuration time.Duration) (*TokenService, error) {
	if len(keyBytes) != keyBytesSize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyBytesSize, len(keyBytes))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenService{
		symmetricKey:    key,
		sessionDuration: sessionDuration,
	}, nil
}

// GenerateShareToken creates a new PASETO v4.local session token for the
// share. The token is encrypted and expires at the share's expiry or after
// the configured session duration, whichever comes first.
func (s *TokenService) GenerateShareToken(share *domain.Share) (string, error) {
	now := time.Now()

	expiry := now.Add(s.sessionDuration)
	if share.ExpiresAt.Before(expiry) {
		expiry = share.ExpiresAt
	}

	token := paseto.NewToken()

	// Add the standard claims
	token.SetIssuer(tokenIssuer)
	token.SetSubject(share.ID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expiry)

	// Generate unique token ID
	tokenID, err := id.Generate("token")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	// Our custom claims
	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("share_id", share.ID)
	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("book_id", share.BookID)

	encrypted := token.V4Encrypt(s.symmetricKey, nil)
	return encrypted, nil
}

// VerifyShareToken verifies and parses a PASETO share session token.
// Returns the claims if valid, or an error if they're invalid or expired.
func (s *TokenService) VerifyShareToken(tokenString string) (*ShareClaims, error) {
	parser := paseto.NewParser()

	// Add validation rules (Basically just checks the claims we set above)
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(time.Now()))

	// Parse and decrypt v4.local token
	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims ShareClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}

	return &claims, nil
}

// SessionDuration returns the configured share session lifetime.
func (s *TokenService) SessionDuration() time.Duration {
	return s.sessionDuration
}
