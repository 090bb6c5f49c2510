// Package content implements LLM-backed content generation: per-tone
// variation fan-out and instruction-driven refinement. The user's vendor
// credential is resolved and decrypted exactly once per operation,
// before any upstream call.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crosspost/crosspost-backend/internal/domain"
	"github.com/crosspost/crosspost-backend/pkg/ctxutil"
)

// draftRepo defines the draft repository interface needed by the content
// service.
type draftRepo interface {
	Replace(ctx context.Context, d *domain.ContentDraft) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ContentDraft, error)
	UpdateRefinement(ctx context.Context, d *domain.ContentDraft) error
}

// campaignRepo defines the campaign repository interface needed by the
// content service.
type campaignRepo interface {
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error)
}

// credentialRepo defines the credential repository interface needed by
// the content service.
type credentialRepo interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.LLMCredential, error)
}

// generator dispatches one prompt to the provider's vendor adapter.
type generator interface {
	Generate(ctx context.Context, provider domain.LLMProvider, apiKey, model, prompt string) (string, error)
}

// secretVault decrypts stored secrets.
type secretVault interface {
	Decrypt(encoded string) (string, error)
}

// Service implements content generation and refinement.
type Service struct {
	log         *slog.Logger
	drafts      draftRepo
	campaigns   campaignRepo
	credentials credentialRepo
	llm         generator
	vault       secretVault
}

// NewService creates a new content service instance.
func NewService(
	logger *slog.Logger,
	drafts draftRepo,
	campaigns campaignRepo,
	credentials credentialRepo,
	llm generator,
	vault secretVault,
) *Service {
	return &Service{
		log:         logger.With("service", "content"),
		drafts:      drafts,
		campaigns:   campaigns,
		credentials: credentials,
		llm:         llm,
		vault:       vault,
	}
}

// GenerateVariations produces one variation per platform tone preset for
// the campaign's source content and stores them as the platform's draft,
// replacing any previous draft wholesale. Tones run in parallel; the
// result order always matches the preset order.
func (s *Service) GenerateVariations(ctx context.Context, campaignID uuid.UUID, platform domain.Platform) (*domain.ContentDraft, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	tones, ok := tonePresets[platform]
	if !ok {
		return nil, domain.NewValidationError("platform", "unknown platform: "+string(platform))
	}

	campaign, err := s.campaigns.GetByIDForUser(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}

	provider, apiKey, model, err := s.resolveCredential(ctx, userID)
	if err != nil {
		return nil, err
	}

	variations := make([]domain.Variation, len(tones))
	g, gctx := errgroup.WithContext(ctx)
	for i, tone := range tones {
		g.Go(func() error {
			text, err := s.llm.Generate(gctx, provider, apiKey, model, variationPrompt(campaign.OriginalContent, platform, tone))
			if err != nil {
				return err
			}
			variations[i] = domain.Variation{Tone: tone, Content: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	draft := &domain.ContentDraft{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		Platform:   platform,
		Variations: variations,
		Status:     domain.PostDraft,
	}
	if err := s.drafts.Replace(ctx, draft); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "variations generated",
		slog.String("campaign_id", campaign.ID.String()),
		slog.String("platform", string(platform)),
		slog.Int("count", len(variations)),
	)

	return draft, nil
}

// Refine rewrites the draft's working content according to a free-text
// instruction: one generation call, then the result becomes the selected
// content with an appended history entry.
func (s *Service) Refine(ctx context.Context, draftID uuid.UUID, instruction string) (*domain.ContentDraft, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if instruction == "" {
		return nil, domain.NewValidationError("instruction", "must not be empty")
	}

	draft, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}

	// Ownership check: the draft's campaign must belong to the caller.
	if _, err := s.campaigns.GetByIDForUser(ctx, draft.CampaignID, userID); err != nil {
		return nil, err
	}

	current := draft.ContentToPublish()
	if current == "" {
		return nil, domain.NewValidationError("draft", "has no content to refine")
	}

	provider, apiKey, model, err := s.resolveCredential(ctx, userID)
	if err != nil {
		return nil, err
	}

	text, err := s.llm.Generate(ctx, provider, apiKey, model, refinePrompt(current, instruction, draft.Platform))
	if err != nil {
		return nil, err
	}

	draft.AppendIteration(text, instruction, time.Now().UTC())
	if err := s.drafts.UpdateRefinement(ctx, draft); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "draft refined",
		slog.String("draft_id", draft.ID.String()),
		slog.String("platform", string(draft.Platform)),
		slog.Int("iterations", len(draft.IterationHistory)),
	)

	return draft, nil
}

// Generate runs one raw prompt through the caller's configured provider.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return "", domain.ErrUnauthorized
	}

	provider, apiKey, model, err := s.resolveCredential(ctx, userID)
	if err != nil {
		return "", err
	}

	return s.llm.Generate(ctx, provider, apiKey, model, prompt)
}

// resolveCredential loads and decrypts the user's LLM credential. Absent
// or unconfigured credentials fail here, before any upstream call.
func (s *Service) resolveCredential(ctx context.Context, userID uuid.UUID) (domain.LLMProvider, string, string, error) {
	cred, err := s.credentials.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", "", "", domain.ErrNoCredential
	}
	if err != nil {
		return "", "", "", err
	}
	if !cred.IsConfigured() {
		return "", "", "", domain.ErrNoCredential
	}

	apiKey, err := s.vault.Decrypt(*cred.EncryptedAPIKey)
	if err != nil {
		return "", "", "", fmt.Errorf("decrypt api key: %w", err)
	}

	return *cred.Provider, apiKey, cred.ModelOrDefault(""), nil
}
