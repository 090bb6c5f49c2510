package domain

import (
	"time"

	"github.com/google/uuid"
)

// SocialConnection binds one user to one platform through an encrypted
// OAuth token pair. Unique per (UserID, Platform).
//
// Tokens are stored only in vault-encrypted form; nothing outside the
// vault call stack ever sees them decrypted.
type SocialConnection struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Platform              Platform
	PlatformUserID        string
	Username              string
	EncryptedAccessToken  string
	EncryptedRefreshToken *string
	TokenExpiresAt        *time.Time
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NeedsReconnection reports whether the stored access token looks expired.
// Freshness is advisory: a false result does not guarantee the platform
// still accepts the token.
func (c *SocialConnection) NeedsReconnection(now time.Time) bool {
	return c.TokenExpiresAt != nil && c.TokenExpiresAt.Before(now)
}

// HasRefreshToken reports whether the platform issued a refresh token.
// Some platforms never do; that makes the connection non-refreshable,
// not broken.
func (c *SocialConnection) HasRefreshToken() bool {
	return c.EncryptedRefreshToken != nil && *c.EncryptedRefreshToken != ""
}
