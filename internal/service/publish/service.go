// Package publish implements the posting orchestrator: taking a
// campaign's drafts live on their platforms. Per-platform failures are
// results, not errors, so one platform can never abort another.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crosspost/crosspost-backend/internal/adapter/social"
	"github.com/crosspost/crosspost-backend/internal/domain"
	"github.com/crosspost/crosspost-backend/pkg/ctxutil"
)

// draftRepo defines the draft repository interface needed by the publish
// service.
type draftRepo interface {
	GetByCampaignAndPlatform(ctx context.Context, campaignID uuid.UUID, platform domain.Platform) (*domain.ContentDraft, error)
	UpdatePublishState(ctx context.Context, d *domain.ContentDraft) error
}

// campaignRepo defines the campaign repository interface needed by the
// publish service.
type campaignRepo interface {
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error)
	GetWithDrafts(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
}

// connections resolves and maintains the caller's platform connections.
type connections interface {
	GetActive(ctx context.Context, platform domain.Platform) (*domain.SocialConnection, error)
	Refresh(ctx context.Context, conn *domain.SocialConnection) (bool, error)
}

// adapterRegistry resolves the platform publisher.
type adapterRegistry interface {
	Get(platform domain.Platform) (social.Adapter, error)
}

// secretVault decrypts stored secrets.
type secretVault interface {
	Decrypt(encoded string) (string, error)
}

// Service implements campaign publishing.
type Service struct {
	log       *slog.Logger
	drafts    draftRepo
	campaigns campaignRepo
	conns     connections
	adapters  adapterRegistry
	vault     secretVault
}

// NewService creates a new publish service instance.
func NewService(
	logger *slog.Logger,
	drafts draftRepo,
	campaigns campaignRepo,
	conns connections,
	adapters adapterRegistry,
	vault secretVault,
) *Service {
	return &Service{
		log:       logger.With("service", "publish"),
		drafts:    drafts,
		campaigns: campaigns,
		conns:     conns,
		adapters:  adapters,
		vault:     vault,
	}
}

// PublishOne publishes the campaign's draft for a single platform. A
// missing connection is a hard stop surfaced as domain.ErrNotConnected;
// an upstream publish failure is returned as a failed result with the
// draft's failed state persisted.
func (s *Service) PublishOne(ctx context.Context, campaignID uuid.UUID, platform domain.Platform) (*domain.PublishResult, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	campaign, err := s.campaigns.GetByIDForUser(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}

	draft, err := s.drafts.GetByCampaignAndPlatform(ctx, campaignID, platform)
	if err != nil {
		return nil, err
	}

	result, err := s.publishDraft(ctx, campaign, draft)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PublishAll publishes every draft of the campaign, one platform per
// goroutine, collecting results independently so one platform's failure
// or latency never affects another. The campaign itself moves to
// published after the fan-out regardless of per-platform outcomes:
// publishing was attempted, and the per-draft states carry the truth.
func (s *Service) PublishAll(ctx context.Context, campaignID uuid.UUID) ([]domain.PublishResult, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	campaign, err := s.campaigns.GetWithDrafts(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}
	if len(campaign.Drafts) == 0 {
		return nil, domain.NewValidationError("campaign", "has no drafts to publish")
	}

	results := make([]domain.PublishResult, len(campaign.Drafts))
	var g errgroup.Group
	for i := range campaign.Drafts {
		draft := campaign.Drafts[i]
		g.Go(func() error {
			result, err := s.publishDraft(ctx, campaign, &draft)
			if err != nil {
				// Per-platform problems become failed results here so the
				// other platforms keep going.
				results[i] = domain.PublishResult{
					Platform: draft.Platform,
					Success:  false,
					Error:    err.Error(),
				}
				return nil
			}
			results[i] = *result
			return nil
		})
	}
	_ = g.Wait()

	if err := s.campaigns.UpdateStatus(ctx, campaign.ID, domain.CampaignPublished); err != nil {
		return nil, err
	}

	return results, nil
}

// publishDraft runs one platform publish attempt end to end. The
// returned error covers pre-flight failures (no connection, no content);
// upstream rejection comes back as a failed result with the draft's
// failed state already persisted.
func (s *Service) publishDraft(ctx context.Context, campaign *domain.Campaign, draft *domain.ContentDraft) (*domain.PublishResult, error) {
	conn, err := s.conns.GetActive(ctx, draft.Platform)
	if err != nil {
		return nil, err
	}

	content := draft.ContentToPublish()
	if content == "" {
		return nil, domain.NewValidationError("draft", "has no content to publish")
	}
	if limit := draft.Platform.Limits().CharacterLimit; limit > 0 && len([]rune(content)) > limit {
		return nil, domain.NewValidationError("draft",
			fmt.Sprintf("content exceeds the %d character limit for %s", limit, draft.Platform))
	}

	if conn.NeedsReconnection(time.Now().UTC()) {
		refreshed, err := s.conns.Refresh(ctx, conn)
		if err != nil {
			return nil, err
		}
		if !refreshed {
			return nil, fmt.Errorf("platform %s: token expired and not refreshable: %w", draft.Platform, domain.ErrNotConnected)
		}
	}

	adapter, err := s.adapters.Get(draft.Platform)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.vault.Decrypt(conn.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}

	ref, err := adapter.Publish(ctx, accessToken, content, campaign.MediaFiles, conn)
	if err != nil {
		draft.MarkFailed()
		if perr := s.drafts.UpdatePublishState(ctx, draft); perr != nil {
			return nil, errors.Join(err, perr)
		}

		s.log.WarnContext(ctx, "publish failed",
			slog.String("campaign_id", campaign.ID.String()),
			slog.String("platform", string(draft.Platform)),
			slog.String("error", err.Error()),
		)

		return &domain.PublishResult{
			Platform: draft.Platform,
			Success:  false,
			Error:    err.Error(),
		}, nil
	}

	draft.MarkPosted(ref.PostID, ref.PostURL, time.Now().UTC())
	if err := s.drafts.UpdatePublishState(ctx, draft); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "draft published",
		slog.String("campaign_id", campaign.ID.String()),
		slog.String("platform", string(draft.Platform)),
		slog.String("post_id", ref.PostID),
	)

	return &domain.PublishResult{
		Platform: draft.Platform,
		Success:  true,
		PostID:   ref.PostID,
		PostURL:  ref.PostURL,
	}, nil
}
