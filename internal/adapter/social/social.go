// Package social contains one adapter per social platform, covering both
// sides of the integration: the OAuth handshake and post publishing.
// Adding a platform means adding one adapter and one registry entry; the
// services above never branch on platform names.
package social

import (
	"context"
	"errors"
	"log/slog"

	"github.com/crosspost/crosspost-backend/internal/config"
	"github.com/crosspost/crosspost-backend/internal/domain"
)

// ErrRefreshUnsupported is returned by platforms that never issue
// refresh tokens. Callers treat it as "cannot refresh", not a failure.
var ErrRefreshUnsupported = errors.New("social: platform does not support token refresh")

// TokenGrant is a normalized token-endpoint response.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string // empty when the platform issued none
	ExpiresIn    int64  // seconds
}

// Profile is the normalized platform identity of the connected user.
type Profile struct {
	ID       string
	Username string
}

// PostRef identifies a successfully published post.
type PostRef struct {
	PostID  string
	PostURL string
}

// OAuthClient is the OAuth capability of a platform adapter.
// The codeChallenge parameter is ignored by platforms without PKCE.
type OAuthClient interface {
	AuthorizationURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenGrant, error)
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error)
}

// Publisher is the posting capability of a platform adapter.
type Publisher interface {
	Publish(ctx context.Context, accessToken, content string, media *domain.MediaFiles, conn *domain.SocialConnection) (*PostRef, error)
}

// Adapter is the full per-platform capability set.
type Adapter interface {
	OAuthClient
	Publisher
	UsesPKCE() bool
}

// Registry holds the adapter for each configured platform.
type Registry struct {
	adapters map[domain.Platform]Adapter
}

// NewRegistry wires adapters for every platform whose OAuth application
// credentials are present in configuration.
func NewRegistry(logger *slog.Logger, cfg config.OAuthConfig) *Registry {
	adapters := make(map[domain.Platform]Adapter)
	if cfg.HasLinkedIn() {
		adapters[domain.PlatformLinkedIn] = NewLinkedIn(logger, cfg)
	}
	if cfg.HasTwitter() {
		adapters[domain.PlatformTwitter] = NewTwitter(logger, cfg)
	}
	return &Registry{adapters: adapters}
}

// Get returns the adapter for the platform, or ErrValidation when the
// platform is unknown or not configured.
func (r *Registry) Get(platform domain.Platform) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, domain.NewValidationError("platform", "not supported or not configured: "+string(platform))
	}
	return a, nil
}

// Platforms lists the configured platforms in domain order.
func (r *Registry) Platforms() []domain.Platform {
	var out []domain.Platform
	for _, p := range domain.AllPlatforms {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
