package draft_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crosspost/crosspost-backend/internal/adapter/postgres/campaign"
	"github.com/crosspost/crosspost-backend/internal/adapter/postgres/draft"
	"github.com/crosspost/crosspost-backend/internal/adapter/postgres/testhelper"
	"github.com/crosspost/crosspost-backend/internal/domain"
)

func newRepos(t *testing.T) (*draft.Repo, *campaign.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	drafts := draft.New(pool)
	return drafts, campaign.New(pool, drafts), pool
}

func createCampaign(t *testing.T, repo *campaign.Repo) *domain.Campaign {
	t.Helper()
	c := &domain.Campaign{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Title:           "Launch post",
		OriginalContent: "We are launching a thing.",
		Status:          domain.CampaignDraft,
	}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("Create campaign: %v", err)
	}
	return c
}

func newDraft(campaignID uuid.UUID, platform domain.Platform) *domain.ContentDraft {
	return &domain.ContentDraft{
		ID:         uuid.New(),
		CampaignID: campaignID,
		Platform:   platform,
		Variations: []domain.Variation{
			{Tone: "Professional & Informative", Content: "v1"},
			{Tone: "Thought Leadership", Content: "v2"},
		},
		Status: domain.PostDraft,
	}
}

func TestRepo_ReplaceAndGet(t *testing.T) {
	t.Parallel()
	drafts, campaigns, _ := newRepos(t)
	ctx := context.Background()

	c := createCampaign(t, campaigns)
	d := newDraft(c.ID, domain.PlatformLinkedIn)
	if err := drafts.Replace(ctx, d); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, err := drafts.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Variations) != 2 || got.Variations[0].Tone != "Professional & Informative" {
		t.Fatalf("variations not round-tripped: %+v", got.Variations)
	}
	if got.Status != domain.PostDraft {
		t.Fatalf("status mismatch: %s", got.Status)
	}
	if got.IterationHistory == nil || len(got.IterationHistory) != 0 {
		t.Fatalf("expected empty history, got %v", got.IterationHistory)
	}
}

func TestRepo_Replace_RegenerationResetsState(t *testing.T) {
	t.Parallel()
	drafts, campaigns, _ := newRepos(t)
	ctx := context.Background()

	c := createCampaign(t, campaigns)
	d := newDraft(c.ID, domain.PlatformTwitter)
	now := time.Now().UTC().Truncate(time.Microsecond)
	d.AppendIteration("refined", "make it shorter", now)
	d.MarkPosted("123", "https://twitter.com/u/status/123", now)
	if err := drafts.Replace(ctx, d); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	// Regeneration writes a fresh draft for the same (campaign, platform).
	regen := newDraft(c.ID, domain.PlatformTwitter)
	if err := drafts.Replace(ctx, regen); err != nil {
		t.Fatalf("Replace (regen): %v", err)
	}

	got, err := drafts.GetByCampaignAndPlatform(ctx, c.ID, domain.PlatformTwitter)
	if err != nil {
		t.Fatalf("GetByCampaignAndPlatform: %v", err)
	}
	if got.ID != d.ID {
		// The row is updated in place; the original id survives the upsert.
		t.Fatalf("expected original row id %s, got %s", d.ID, got.ID)
	}
	if got.Status != domain.PostDraft || got.PostID != nil || got.SelectedContent != nil {
		t.Fatalf("regeneration did not reset state: %+v", got)
	}
	if len(got.IterationHistory) != 0 {
		t.Fatalf("regeneration did not clear history: %v", got.IterationHistory)
	}
}

func TestRepo_UpdateRefinement_AppendsHistory(t *testing.T) {
	t.Parallel()
	drafts, campaigns, _ := newRepos(t)
	ctx := context.Background()

	c := createCampaign(t, campaigns)
	d := newDraft(c.ID, domain.PlatformLinkedIn)
	if err := drafts.Replace(ctx, d); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	d.AppendIteration("refined once", "add emoji", now)
	if err := drafts.UpdateRefinement(ctx, d); err != nil {
		t.Fatalf("UpdateRefinement: %v", err)
	}
	d.AppendIteration("refined twice", "remove emoji", now.Add(time.Minute))
	if err := drafts.UpdateRefinement(ctx, d); err != nil {
		t.Fatalf("UpdateRefinement: %v", err)
	}

	got, err := drafts.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SelectedContent == nil || *got.SelectedContent != "refined twice" {
		t.Fatalf("selected content mismatch: %v", got.SelectedContent)
	}
	if len(got.IterationHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(got.IterationHistory))
	}
	if got.IterationHistory[0].Prompt != "add emoji" || got.IterationHistory[1].Prompt != "remove emoji" {
		t.Fatalf("history order wrong: %+v", got.IterationHistory)
	}
}

func TestRepo_UpdatePublishState(t *testing.T) {
	t.Parallel()
	drafts, campaigns, _ := newRepos(t)
	ctx := context.Background()

	c := createCampaign(t, campaigns)
	d := newDraft(c.ID, domain.PlatformTwitter)
	if err := drafts.Replace(ctx, d); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	d.MarkPosted("987", "https://twitter.com/u/status/987", now)
	if err := drafts.UpdatePublishState(ctx, d); err != nil {
		t.Fatalf("UpdatePublishState: %v", err)
	}

	got, err := drafts.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.PostPosted || got.PostID == nil || *got.PostID != "987" {
		t.Fatalf("posted state not persisted: %+v", got)
	}
	if got.PostedAt == nil || !got.PostedAt.Equal(now) {
		t.Fatalf("posted_at mismatch: %v", got.PostedAt)
	}

	// A later failed attempt clears the stale identifiers.
	d.MarkFailed()
	if err := drafts.UpdatePublishState(ctx, d); err != nil {
		t.Fatalf("UpdatePublishState (failed): %v", err)
	}
	got, err = drafts.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.PostFailed || got.PostID != nil || got.PostURL != nil || got.PostedAt != nil {
		t.Fatalf("failed state not persisted: %+v", got)
	}
}

func TestRepo_GetByID_NotFound(t *testing.T) {
	t.Parallel()
	drafts, _, _ := newRepos(t)

	_, err := drafts.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestRepo_Replace_UnknownCampaign(t *testing.T) {
	t.Parallel()
	drafts, _, _ := newRepos(t)

	err := drafts.Replace(context.Background(), newDraft(uuid.New(), domain.PlatformTwitter))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for FK violation, got: %v", err)
	}
}
