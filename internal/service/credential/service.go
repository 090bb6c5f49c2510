// Package credential implements LLM credential management. The API key
// is vault-encrypted before it ever reaches the repository; revocation
// clears provider, model and key as one atomic write.
package credential

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/crosspost/crosspost-backend/internal/domain"
	"github.com/crosspost/crosspost-backend/pkg/ctxutil"
)

// credentialRepo defines the credential repository interface needed by
// the credential service.
type credentialRepo interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.LLMCredential, error)
	Upsert(ctx context.Context, c *domain.LLMCredential) error
	Revoke(ctx context.Context, userID uuid.UUID) error
}

// secretVault encrypts stored secrets.
type secretVault interface {
	Encrypt(plaintext string) (string, error)
}

// Service implements LLM credential management.
type Service struct {
	log   *slog.Logger
	repo  credentialRepo
	vault secretVault
}

// NewService creates a new credential service instance.
func NewService(logger *slog.Logger, repo credentialRepo, vault secretVault) *Service {
	return &Service{
		log:   logger.With("service", "credential"),
		repo:  repo,
		vault: vault,
	}
}

// Set stores the caller's provider choice and API key. A nil model keeps
// the provider default at generation time.
func (s *Service) Set(ctx context.Context, provider domain.LLMProvider, model *string, apiKey string) error {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return domain.ErrUnauthorized
	}

	if !provider.IsValid() {
		return domain.NewValidationError("provider", "unknown provider: "+string(provider))
	}
	if apiKey == "" {
		return domain.NewValidationError("apiKey", "must not be empty")
	}
	if model != nil && *model == "" {
		return domain.NewValidationError("model", "must not be empty when set")
	}

	encKey, err := s.vault.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}

	cred := &domain.LLMCredential{
		UserID:          userID,
		Provider:        &provider,
		Model:           model,
		EncryptedAPIKey: &encKey,
	}
	if err := s.repo.Upsert(ctx, cred); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "llm credential set",
		slog.String("user_id", userID.String()),
		slog.String("provider", string(provider)),
	)
	return nil
}

// Get returns the caller's credential with the key still encrypted.
// domain.ErrNoCredential means nothing is configured.
func (s *Service) Get(ctx context.Context) (*domain.LLMCredential, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	cred, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cred.IsConfigured() {
		return nil, domain.ErrNoCredential
	}
	return cred, nil
}

// Revoke clears the caller's provider, model and key together. Revoking
// an unconfigured user is a no-op.
func (s *Service) Revoke(ctx context.Context) error {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return domain.ErrUnauthorized
	}

	if err := s.repo.Revoke(ctx, userID); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "llm credential revoked",
		slog.String("user_id", userID.String()),
	)
	return nil
}
