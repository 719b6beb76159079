package domain

import "time"

// Share is a time-limited link that exposes one book for download over
// the LAN share endpoint. Access may additionally require a password;
// the hash is Argon2id, never the plaintext.
type Share struct {
	ID           string     `json:"id"`
	BookID       string     `json:"book_id"`
	Token        string     `json:"token"`
	PasswordHash string     `json:"password_hash,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	MaxAccesses  int        `json:"max_accesses,omitempty"`
	AccessCount  int        `json:"access_count"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Usable reports whether the share can still be accessed at the given
// time: not revoked, not expired, and under its access budget.
func (s *Share) Usable(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	if now.After(s.ExpiresAt) {
		return false
	}
	if s.MaxAccesses > 0 && s.AccessCount >= s.MaxAccesses {
		return false
	}
	return true
}

// RequiresPassword reports whether access must present a password.
func (s *Share) RequiresPassword() bool {
	return s.PasswordHash != ""
}
