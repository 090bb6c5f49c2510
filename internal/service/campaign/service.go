// Package campaign implements campaign lifecycle operations around the
// content pipeline: create, read and list.
package campaign

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/crosspost/crosspost-backend/internal/domain"
	"github.com/crosspost/crosspost-backend/pkg/ctxutil"
)

// campaignRepo defines the campaign repository interface needed by the
// campaign service.
type campaignRepo interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error)
	GetWithDrafts(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Campaign, error)
}

// CreateInput carries the user-provided campaign fields.
type CreateInput struct {
	Title           string
	OriginalContent string
	MediaFiles      *domain.MediaFiles
	Links           []domain.Link
}

// Service implements campaign operations.
type Service struct {
	log  *slog.Logger
	repo campaignRepo
}

// NewService creates a new campaign service instance.
func NewService(logger *slog.Logger, repo campaignRepo) *Service {
	return &Service{
		log:  logger.With("service", "campaign"),
		repo: repo,
	}
}

// Create validates and stores a new campaign in draft state.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Campaign, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if in.Title == "" {
		return nil, domain.NewValidationError("title", "must not be empty")
	}
	if in.OriginalContent == "" {
		return nil, domain.NewValidationError("originalContent", "must not be empty")
	}

	c := &domain.Campaign{
		ID:              uuid.New(),
		UserID:          userID,
		Title:           in.Title,
		OriginalContent: in.OriginalContent,
		MediaFiles:      in.MediaFiles,
		Links:           in.Links,
		Status:          domain.CampaignDraft,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "campaign created",
		slog.String("campaign_id", c.ID.String()),
		slog.String("user_id", userID.String()),
	)
	return c, nil
}

// Get returns the caller's campaign with its platform drafts.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.GetWithDrafts(ctx, id, userID)
}

// List returns the caller's campaigns, newest first, without drafts.
func (s *Service) List(ctx context.Context) ([]domain.Campaign, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.List(ctx, userID)
}
