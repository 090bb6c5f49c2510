// Package connection implements the OAuth connection lifecycle: building
// authorization URLs, handling callbacks, refreshing tokens and
// disconnecting accounts. Platform tokens are stored encrypted and
// decrypted only for the duration of an upstream call.
package connection

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/crosspost/crosspost-backend/internal/adapter/social"
	"github.com/crosspost/crosspost-backend/internal/config"
	"github.com/crosspost/crosspost-backend/internal/domain"
	"github.com/crosspost/crosspost-backend/pkg/ctxutil"
)

// connectionRepo defines the connection repository interface needed by
// the connection service.
type connectionRepo interface {
	GetByUserAndPlatform(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.SocialConnection, error)
	GetActive(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.SocialConnection, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]domain.SocialConnection, error)
	Create(ctx context.Context, c *domain.SocialConnection) error
	Update(ctx context.Context, c *domain.SocialConnection) error
	UpdateTokens(ctx context.Context, id uuid.UUID, encryptedAccess string, encryptedRefresh *string, expiresAt *time.Time) error
	Deactivate(ctx context.Context, userID uuid.UUID, platform domain.Platform) error
}

// adapterRegistry resolves the platform adapter.
type adapterRegistry interface {
	Get(platform domain.Platform) (social.Adapter, error)
	Platforms() []domain.Platform
}

// secretVault encrypts and decrypts stored secrets.
type secretVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// txManager defines the transaction manager interface needed by the
// connection service.
type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ConnectedAccount is a connection plus its derived health.
type ConnectedAccount struct {
	Connection        domain.SocialConnection
	NeedsReconnection bool
}

// Service implements the OAuth connection lifecycle.
type Service struct {
	log      *slog.Logger
	repo     connectionRepo
	adapters adapterRegistry
	vault    secretVault
	tx       txManager
	states   *stateManager

	// refreshes serializes concurrent refreshes per connection so a
	// rotated refresh token is never used twice.
	refreshes singleflight.Group
}

// NewService creates a new connection service instance.
func NewService(
	logger *slog.Logger,
	repo connectionRepo,
	adapters adapterRegistry,
	vault secretVault,
	tx txManager,
	cfg config.OAuthConfig,
) *Service {
	return &Service{
		log:      logger.With("service", "connection"),
		repo:     repo,
		adapters: adapters,
		vault:    vault,
		tx:       tx,
		states:   newStateManager(cfg.StateSecret, cfg.StateTTL),
	}
}

// BuildAuthorizationURL starts the OAuth handshake for the calling user.
// The returned URL carries a signed state token; for PKCE platforms the
// encrypted verifier rides inside the state and the derived challenge
// rides as a URL parameter.
func (s *Service) BuildAuthorizationURL(ctx context.Context, platform domain.Platform) (string, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return "", domain.ErrUnauthorized
	}

	adapter, err := s.adapters.Get(platform)
	if err != nil {
		return "", err
	}

	var encVerifier, challenge string
	if adapter.UsesPKCE() {
		verifier, err := randomVerifier()
		if err != nil {
			return "", err
		}
		encVerifier, err = s.vault.Encrypt(verifier)
		if err != nil {
			return "", fmt.Errorf("encrypt verifier: %w", err)
		}
		challenge = social.S256Challenge(verifier)
	}

	state, err := s.states.Issue(userID, platform, encVerifier)
	if err != nil {
		return "", err
	}

	s.log.InfoContext(ctx, "authorization url built",
		slog.String("platform", string(platform)),
		slog.String("user_id", userID.String()),
	)

	return adapter.AuthorizationURL(state, challenge), nil
}

// HandleCallback completes the handshake: verifies state, exchanges the
// code, fetches the platform profile and stores the connection with
// encrypted tokens. Reconnecting a platform reactivates and overwrites
// the existing record.
func (s *Service) HandleCallback(ctx context.Context, state, code string) (*domain.SocialConnection, error) {
	if state == "" || code == "" {
		return nil, fmt.Errorf("%w: missing state or code", domain.ErrBadCallback)
	}

	userID, platform, encVerifier, err := s.states.Verify(state)
	if err != nil {
		return nil, err
	}

	adapter, err := s.adapters.Get(platform)
	if err != nil {
		return nil, err
	}

	var verifier string
	if encVerifier != "" {
		verifier, err = s.vault.Decrypt(encVerifier)
		if err != nil {
			return nil, fmt.Errorf("%w: undecryptable verifier", domain.ErrBadCallback)
		}
	}

	grant, err := adapter.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	profile, err := adapter.FetchProfile(ctx, grant.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	encAccess, err := s.vault.Encrypt(grant.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	var encRefresh *string
	if grant.RefreshToken != "" {
		enc, err := s.vault.Encrypt(grant.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
		encRefresh = &enc
	}

	var expiresAt *time.Time
	if grant.ExpiresIn > 0 {
		t := time.Now().UTC().Add(time.Duration(grant.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	// The lookup and write run in one transaction: two callbacks racing
	// for the same (user, platform) must not both take the create path.
	var conn *domain.SocialConnection
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByUserAndPlatform(ctx, userID, platform)
		switch {
		case err == nil:
			existing.PlatformUserID = profile.ID
			existing.Username = profile.Username
			existing.EncryptedAccessToken = encAccess
			existing.EncryptedRefreshToken = encRefresh
			existing.TokenExpiresAt = expiresAt
			existing.IsActive = true
			conn = existing
			return s.repo.Update(ctx, existing)
		case errors.Is(err, domain.ErrNotFound):
			conn = &domain.SocialConnection{
				ID:                    uuid.New(),
				UserID:                userID,
				Platform:              platform,
				PlatformUserID:        profile.ID,
				Username:              profile.Username,
				EncryptedAccessToken:  encAccess,
				EncryptedRefreshToken: encRefresh,
				TokenExpiresAt:        expiresAt,
				IsActive:              true,
			}
			return s.repo.Create(ctx, conn)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "platform connected",
		slog.String("platform", string(platform)),
		slog.String("user_id", userID.String()),
		slog.String("platform_user_id", profile.ID),
	)

	return conn, nil
}

// Refresh rotates the connection's access token using its stored refresh
// token. Returns false without any upstream call when the connection
// carries no refresh token or the platform cannot refresh; returns false
// with a nil error when the platform rejects the stored token, since a
// revoked grant is an expected state, not a failure. Concurrent calls
// for the same connection share one upstream request.
func (s *Service) Refresh(ctx context.Context, conn *domain.SocialConnection) (bool, error) {
	if !conn.HasRefreshToken() {
		return false, nil
	}

	type outcome struct {
		grant *social.TokenGrant
		ok    bool
	}

	v, err, _ := s.refreshes.Do(conn.ID.String(), func() (any, error) {
		adapter, err := s.adapters.Get(conn.Platform)
		if err != nil {
			return nil, err
		}

		refreshToken, err := s.vault.Decrypt(*conn.EncryptedRefreshToken)
		if err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}

		grant, err := adapter.RefreshToken(ctx, refreshToken)
		if errors.Is(err, social.ErrRefreshUnsupported) {
			return outcome{}, nil
		}
		if err != nil {
			s.log.WarnContext(ctx, "token refresh rejected",
				slog.String("platform", string(conn.Platform)),
				slog.String("connection_id", conn.ID.String()),
				slog.String("error", err.Error()),
			)
			return outcome{}, nil
		}

		encAccess, err := s.vault.Encrypt(grant.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt access token: %w", err)
		}
		var encRefresh *string
		if grant.RefreshToken != "" {
			enc, err := s.vault.Encrypt(grant.RefreshToken)
			if err != nil {
				return nil, fmt.Errorf("encrypt refresh token: %w", err)
			}
			encRefresh = &enc
		}

		var expiresAt *time.Time
		if grant.ExpiresIn > 0 {
			t := time.Now().UTC().Add(time.Duration(grant.ExpiresIn) * time.Second)
			expiresAt = &t
		}

		if err := s.repo.UpdateTokens(ctx, conn.ID, encAccess, encRefresh, expiresAt); err != nil {
			return nil, err
		}

		conn.EncryptedAccessToken = encAccess
		if encRefresh != nil {
			conn.EncryptedRefreshToken = encRefresh
		}
		conn.TokenExpiresAt = expiresAt

		return outcome{grant: grant, ok: true}, nil
	})
	if err != nil {
		return false, err
	}

	return v.(outcome).ok, nil
}

// Disconnect soft-deletes the connection. Stored tokens are kept so the
// record can be reactivated by a later reconnect; domain.ErrNotFound
// means the user never connected this platform.
func (s *Service) Disconnect(ctx context.Context, platform domain.Platform) error {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return domain.ErrUnauthorized
	}

	if err := s.repo.Deactivate(ctx, userID, platform); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "platform disconnected",
		slog.String("platform", string(platform)),
		slog.String("user_id", userID.String()),
	)
	return nil
}

// GetActive returns the calling user's active connection for a platform,
// or domain.ErrNotConnected.
func (s *Service) GetActive(ctx context.Context, platform domain.Platform) (*domain.SocialConnection, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	conn, err := s.repo.GetActive(ctx, userID, platform)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("platform %s: %w", platform, domain.ErrNotConnected)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ListConnected returns the user's active connections with their derived
// health, so callers can prompt for reconnection before a publish fails.
func (s *Service) ListConnected(ctx context.Context) ([]ConnectedAccount, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	conns, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]ConnectedAccount, 0, len(conns))
	for _, c := range conns {
		out = append(out, ConnectedAccount{
			Connection:        c,
			NeedsReconnection: c.NeedsReconnection(now) && !c.HasRefreshToken(),
		})
	}
	return out, nil
}

// AvailablePlatforms lists the platforms this deployment can connect,
// in stable order. Not user-scoped.
func (s *Service) AvailablePlatforms() []domain.Platform {
	return s.adapters.Platforms()
}

// randomVerifier produces a PKCE code verifier: 32 random bytes as
// unpadded base64url, 43 characters, inside the RFC 7636 length bounds.
func randomVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
