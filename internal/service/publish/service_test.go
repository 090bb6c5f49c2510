package publish

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspost/crosspost-backend/internal/adapter/social"
	"github.com/crosspost/crosspost-backend/internal/domain"
	"github.com/crosspost/crosspost-backend/pkg/ctxutil"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestService(drafts draftRepo, campaigns campaignRepo, conns connections, adapters adapterRegistry) *Service {
	logger := slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(logger, drafts, campaigns, conns, adapters, fakeVault{})
}

func authedCtx(userID uuid.UUID) context.Context {
	return ctxutil.WithUserID(context.Background(), userID)
}

func ptr[T any](v T) *T { return &v }

type fakeVault struct{}

func (fakeVault) Decrypt(encoded string) (string, error) {
	if !strings.HasPrefix(encoded, "enc:") {
		return "", errors.New("fakeVault: not an encrypted blob")
	}
	return strings.TrimPrefix(encoded, "enc:"), nil
}

type draftRepoMock struct {
	GetByCampaignAndPlatformFunc func(ctx context.Context, campaignID uuid.UUID, platform domain.Platform) (*domain.ContentDraft, error)
	UpdatePublishStateFunc       func(ctx context.Context, d *domain.ContentDraft) error

	mu        sync.Mutex
	persisted []domain.ContentDraft
}

func (m *draftRepoMock) GetByCampaignAndPlatform(ctx context.Context, campaignID uuid.UUID, platform domain.Platform) (*domain.ContentDraft, error) {
	return m.GetByCampaignAndPlatformFunc(ctx, campaignID, platform)
}

func (m *draftRepoMock) UpdatePublishState(ctx context.Context, d *domain.ContentDraft) error {
	m.mu.Lock()
	m.persisted = append(m.persisted, *d)
	m.mu.Unlock()
	if m.UpdatePublishStateFunc != nil {
		return m.UpdatePublishStateFunc(ctx, d)
	}
	return nil
}

func (m *draftRepoMock) Persisted() []domain.ContentDraft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persisted
}

type campaignRepoMock struct {
	GetByIDForUserFunc func(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error)
	GetWithDraftsFunc  func(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error)

	mu            sync.Mutex
	statusUpdates []domain.CampaignStatus
}

func (m *campaignRepoMock) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error) {
	return m.GetByIDForUserFunc(ctx, id, userID)
}

func (m *campaignRepoMock) GetWithDrafts(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error) {
	return m.GetWithDraftsFunc(ctx, id, userID)
}

func (m *campaignRepoMock) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	m.mu.Lock()
	m.statusUpdates = append(m.statusUpdates, status)
	m.mu.Unlock()
	return nil
}

func (m *campaignRepoMock) StatusUpdates() []domain.CampaignStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusUpdates
}

type connectionsMock struct {
	GetActiveFunc func(ctx context.Context, platform domain.Platform) (*domain.SocialConnection, error)
	RefreshFunc   func(ctx context.Context, conn *domain.SocialConnection) (bool, error)
}

func (m *connectionsMock) GetActive(ctx context.Context, platform domain.Platform) (*domain.SocialConnection, error) {
	return m.GetActiveFunc(ctx, platform)
}

func (m *connectionsMock) Refresh(ctx context.Context, conn *domain.SocialConnection) (bool, error) {
	return m.RefreshFunc(ctx, conn)
}

// publisherMock implements social.Adapter; only Publish is exercised by
// the publish service.
type publisherMock struct {
	PublishFunc func(ctx context.Context, accessToken, content string, media *domain.MediaFiles, conn *domain.SocialConnection) (*social.PostRef, error)
}

func (m *publisherMock) Publish(ctx context.Context, accessToken, content string, media *domain.MediaFiles, conn *domain.SocialConnection) (*social.PostRef, error) {
	return m.PublishFunc(ctx, accessToken, content, media, conn)
}

func (m *publisherMock) AuthorizationURL(state, codeChallenge string) string { panic("not expected") }
func (m *publisherMock) ExchangeCode(ctx context.Context, code, codeVerifier string) (*social.TokenGrant, error) {
	panic("not expected")
}
func (m *publisherMock) FetchProfile(ctx context.Context, accessToken string) (*social.Profile, error) {
	panic("not expected")
}
func (m *publisherMock) RefreshToken(ctx context.Context, refreshToken string) (*social.TokenGrant, error) {
	panic("not expected")
}
func (m *publisherMock) UsesPKCE() bool { return false }

// registryMock returns a per-platform adapter.
type registryMock struct {
	adapters map[domain.Platform]social.Adapter
}

func (m *registryMock) Get(platform domain.Platform) (social.Adapter, error) {
	a, ok := m.adapters[platform]
	if !ok {
		return nil, domain.NewValidationError("platform", "not configured")
	}
	return a, nil
}

func activeConnection(platform domain.Platform) *domain.SocialConnection {
	future := time.Now().UTC().Add(time.Hour)
	return &domain.SocialConnection{
		ID:                   uuid.New(),
		Platform:             platform,
		Username:             "ada",
		EncryptedAccessToken: "enc:access-token",
		TokenExpiresAt:       &future,
		IsActive:             true,
	}
}

func draftFor(campaignID uuid.UUID, platform domain.Platform) *domain.ContentDraft {
	return &domain.ContentDraft{
		ID:         uuid.New(),
		CampaignID: campaignID,
		Platform:   platform,
		Variations: []domain.Variation{{Tone: "Casual & Fun", Content: "variation content"}},
		Status:     domain.PostDraft,
	}
}

// ---------------------------------------------------------------------------
// PublishOne tests
// ---------------------------------------------------------------------------

func TestService_PublishOne_Success(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaign := &domain.Campaign{ID: uuid.New(), UserID: userID, MediaFiles: &domain.MediaFiles{Images: []string{"x.png"}}}
	draft := draftFor(campaign.ID, domain.PlatformTwitter)
	draft.FinalContent = ptr("final content")

	drafts := &draftRepoMock{
		GetByCampaignAndPlatformFunc: func(ctx context.Context, cid uuid.UUID, p domain.Platform) (*domain.ContentDraft, error) {
			return draft, nil
		},
	}
	campaigns := &campaignRepoMock{
		GetByIDForUserFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return campaign, nil
		},
	}
	conns := &connectionsMock{
		GetActiveFunc: func(ctx context.Context, p domain.Platform) (*domain.SocialConnection, error) {
			return activeConnection(p), nil
		},
	}
	pub := &publisherMock{
		PublishFunc: func(ctx context.Context, accessToken, content string, media *domain.MediaFiles, conn *domain.SocialConnection) (*social.PostRef, error) {
			assert.Equal(t, "access-token", accessToken, "token must arrive decrypted")
			assert.Equal(t, "final content", content, "finalContent wins over variations")
			assert.Equal(t, campaign.MediaFiles, media)
			return &social.PostRef{PostID: "42", PostURL: "https://twitter.com/ada/status/42"}, nil
		},
	}

	svc := newTestService(drafts, campaigns, conns, &registryMock{adapters: map[domain.Platform]social.Adapter{domain.PlatformTwitter: pub}})
	result, err := svc.PublishOne(authedCtx(userID), campaign.ID, domain.PlatformTwitter)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "42", result.PostID)
	assert.Equal(t, "https://twitter.com/ada/status/42", result.PostURL)
	assert.Empty(t, result.Error)

	persisted := drafts.Persisted()
	require.Len(t, persisted, 1)
	assert.Equal(t, domain.PostPosted, persisted[0].Status)
	require.NotNil(t, persisted[0].PostID)
	assert.Equal(t, "42", *persisted[0].PostID)
	require.NotNil(t, persisted[0].PostedAt)
}

func TestService_PublishOne_NotConnected(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaign := &domain.Campaign{ID: uuid.New(), UserID: userID}
	drafts := &draftRepoMock{
		GetByCampaignAndPlatformFunc: func(ctx context.Context, cid uuid.UUID, p domain.Platform) (*domain.ContentDraft, error) {
			return draftFor(cid, p), nil
		},
	}
	campaigns := &campaignRepoMock{
		GetByIDForUserFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return campaign, nil
		},
	}
	conns := &connectionsMock{
		GetActiveFunc: func(ctx context.Context, p domain.Platform) (*domain.SocialConnection, error) {
			return nil, domain.ErrNotConnected
		},
	}

	svc := newTestService(drafts, campaigns, conns, &registryMock{})
	_, err := svc.PublishOne(authedCtx(userID), campaign.ID, domain.PlatformLinkedIn)
	require.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Empty(t, drafts.Persisted(), "a never-attempted publish must not touch the draft")
}

func TestService_PublishOne_UpstreamFailurePersistsFailedDraft(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaign := &domain.Campaign{ID: uuid.New(), UserID: userID}
	draft := draftFor(campaign.ID, domain.PlatformTwitter)
	now := time.Now().UTC()
	draft.MarkPosted("old-post", "https://old", now)

	drafts := &draftRepoMock{
		GetByCampaignAndPlatformFunc: func(ctx context.Context, cid uuid.UUID, p domain.Platform) (*domain.ContentDraft, error) {
			return draft, nil
		},
	}
	campaigns := &campaignRepoMock{
		GetByIDForUserFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return campaign, nil
		},
	}
	conns := &connectionsMock{
		GetActiveFunc: func(ctx context.Context, p domain.Platform) (*domain.SocialConnection, error) {
			return activeConnection(p), nil
		},
	}
	pub := &publisherMock{
		PublishFunc: func(ctx context.Context, accessToken, content string, media *domain.MediaFiles, conn *domain.SocialConnection) (*social.PostRef, error) {
			return nil, errors.New("duplicate content rejected")
		},
	}

	svc := newTestService(drafts, campaigns, conns, &registryMock{adapters: map[domain.Platform]social.Adapter{domain.PlatformTwitter: pub}})
	result, err := svc.PublishOne(authedCtx(userID), campaign.ID, domain.PlatformTwitter)
	require.NoError(t, err, "an upstream rejection is a failed result, not an error")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "duplicate content rejected")
	assert.Empty(t, result.PostID)

	persisted := drafts.Persisted()
	require.Len(t, persisted, 1)
	assert.Equal(t, domain.PostFailed, persisted[0].Status)
	assert.Nil(t, persisted[0].PostID, "stale identifiers must be cleared")
	assert.Nil(t, persisted[0].PostedAt)
}

func TestService_PublishOne_ExpiredTokenRefreshes(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaign := &domain.Campaign{ID: uuid.New(), UserID: userID}
	past := time.Now().UTC().Add(-time.Hour)

	conn := activeConnection(domain.PlatformTwitter)
	conn.TokenExpiresAt = &past
	conn.EncryptedRefreshToken = ptr("enc:rt")

	drafts := &draftRepoMock{
		GetByCampaignAndPlatformFunc: func(ctx context.Context, cid uuid.UUID, p domain.Platform) (*domain.ContentDraft, error) {
			return draftFor(cid, p), nil
		},
	}
	campaigns := &campaignRepoMock{
		GetByIDForUserFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return campaign, nil
		},
	}
	refreshed := false
	conns := &connectionsMock{
		GetActiveFunc: func(ctx context.Context, p domain.Platform) (*domain.SocialConnection, error) {
			return conn, nil
		},
		RefreshFunc: func(ctx context.Context, c *domain.SocialConnection) (bool, error) {
			refreshed = true
			c.EncryptedAccessToken = "enc:fresh-token"
			return true, nil
		},
	}
	pub := &publisherMock{
		PublishFunc: func(ctx context.Context, accessToken, content string, media *domain.MediaFiles, conn *domain.SocialConnection) (*social.PostRef, error) {
			assert.Equal(t, "fresh-token", accessToken, "publish must use the refreshed token")
			return &social.PostRef{PostID: "1", PostURL: "https://twitter.com/ada/status/1"}, nil
		},
	}

	svc := newTestService(drafts, campaigns, conns, &registryMock{adapters: map[domain.Platform]social.Adapter{domain.PlatformTwitter: pub}})
	result, err := svc.PublishOne(authedCtx(userID), campaign.ID, domain.PlatformTwitter)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.True(t, result.Success)
}

func TestService_PublishOne_ExpiredTokenNotRefreshable(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaign := &domain.Campaign{ID: uuid.New(), UserID: userID}
	past := time.Now().UTC().Add(-time.Hour)
	conn := activeConnection(domain.PlatformLinkedIn)
	conn.TokenExpiresAt = &past

	drafts := &draftRepoMock{
		GetByCampaignAndPlatformFunc: func(ctx context.Context, cid uuid.UUID, p domain.Platform) (*domain.ContentDraft, error) {
			return draftFor(cid, p), nil
		},
	}
	campaigns := &campaignRepoMock{
		GetByIDForUserFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return campaign, nil
		},
	}
	conns := &connectionsMock{
		GetActiveFunc: func(ctx context.Context, p domain.Platform) (*domain.SocialConnection, error) {
			return conn, nil
		},
		RefreshFunc: func(ctx context.Context, c *domain.SocialConnection) (bool, error) {
			return false, nil
		},
	}

	svc := newTestService(drafts, campaigns, conns, &registryMock{})
	_, err := svc.PublishOne(authedCtx(userID), campaign.ID, domain.PlatformLinkedIn)
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestService_PublishOne_EmptyDraft(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaign := &domain.Campaign{ID: uuid.New(), UserID: userID}
	drafts := &draftRepoMock{
		GetByCampaignAndPlatformFunc: func(ctx context.Context, cid uuid.UUID, p domain.Platform) (*domain.ContentDraft, error) {
			return &domain.ContentDraft{ID: uuid.New(), CampaignID: cid, Platform: p}, nil
		},
	}
	campaigns := &campaignRepoMock{
		GetByIDForUserFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return campaign, nil
		},
	}
	conns := &connectionsMock{
		GetActiveFunc: func(ctx context.Context, p domain.Platform) (*domain.SocialConnection, error) {
			return activeConnection(p), nil
		},
	}

	svc := newTestService(drafts, campaigns, conns, &registryMock{})
	_, err := svc.PublishOne(authedCtx(userID), campaign.ID, domain.PlatformTwitter)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_PublishOne_OversizedDraft(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaign := &domain.Campaign{ID: uuid.New(), UserID: userID}
	over := strings.Repeat("x", domain.PlatformTwitter.Limits().CharacterLimit+1)
	drafts := &draftRepoMock{
		GetByCampaignAndPlatformFunc: func(ctx context.Context, cid uuid.UUID, p domain.Platform) (*domain.ContentDraft, error) {
			return &domain.ContentDraft{ID: uuid.New(), CampaignID: cid, Platform: p, FinalContent: ptr(over)}, nil
		},
	}
	campaigns := &campaignRepoMock{
		GetByIDForUserFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return campaign, nil
		},
	}
	conns := &connectionsMock{
		GetActiveFunc: func(ctx context.Context, p domain.Platform) (*domain.SocialConnection, error) {
			return activeConnection(p), nil
		},
	}

	svc := newTestService(drafts, campaigns, conns, &registryMock{})
	_, err := svc.PublishOne(authedCtx(userID), campaign.ID, domain.PlatformTwitter)
	require.ErrorIs(t, err, domain.ErrValidation)
}

// ---------------------------------------------------------------------------
// PublishAll tests
// ---------------------------------------------------------------------------

func TestService_PublishAll_PartialFailureIsolation(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaign := &domain.Campaign{ID: uuid.New(), UserID: userID}
	campaign.Drafts = []domain.ContentDraft{
		*draftFor(campaign.ID, domain.PlatformLinkedIn),
		*draftFor(campaign.ID, domain.PlatformTwitter),
	}

	drafts := &draftRepoMock{}
	campaigns := &campaignRepoMock{
		GetWithDraftsFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return campaign, nil
		},
	}
	conns := &connectionsMock{
		GetActiveFunc: func(ctx context.Context, p domain.Platform) (*domain.SocialConnection, error) {
			return activeConnection(p), nil
		},
	}
	liPub := &publisherMock{
		PublishFunc: func(ctx context.Context, accessToken, content string, media *domain.MediaFiles, conn *domain.SocialConnection) (*social.PostRef, error) {
			return &social.PostRef{PostID: "li-1", PostURL: "https://linkedin.com/feed/update/li-1"}, nil
		},
	}
	twPub := &publisherMock{
		PublishFunc: func(ctx context.Context, accessToken, content string, media *domain.MediaFiles, conn *domain.SocialConnection) (*social.PostRef, error) {
			return nil, errors.New("rate limited")
		},
	}

	svc := newTestService(drafts, campaigns, conns, &registryMock{adapters: map[domain.Platform]social.Adapter{
		domain.PlatformLinkedIn: liPub,
		domain.PlatformTwitter:  twPub,
	}})

	results, err := svc.PublishAll(authedCtx(userID), campaign.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Results stay in draft order.
	assert.Equal(t, domain.PlatformLinkedIn, results[0].Platform)
	assert.True(t, results[0].Success)
	assert.Equal(t, "li-1", results[0].PostID)

	assert.Equal(t, domain.PlatformTwitter, results[1].Platform)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Error)

	// Both drafts persisted their own outcome, independently.
	persisted := drafts.Persisted()
	require.Len(t, persisted, 2)
	byPlatform := map[domain.Platform]domain.PostStatus{}
	for _, d := range persisted {
		byPlatform[d.Platform] = d.Status
	}
	assert.Equal(t, domain.PostPosted, byPlatform[domain.PlatformLinkedIn])
	assert.Equal(t, domain.PostFailed, byPlatform[domain.PlatformTwitter])

	// The campaign moves to published even with a failed platform.
	assert.Equal(t, []domain.CampaignStatus{domain.CampaignPublished}, campaigns.StatusUpdates())
}

func TestService_PublishAll_MissingConnectionBecomesFailedResult(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaign := &domain.Campaign{ID: uuid.New(), UserID: userID}
	campaign.Drafts = []domain.ContentDraft{*draftFor(campaign.ID, domain.PlatformTwitter)}

	campaigns := &campaignRepoMock{
		GetWithDraftsFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return campaign, nil
		},
	}
	conns := &connectionsMock{
		GetActiveFunc: func(ctx context.Context, p domain.Platform) (*domain.SocialConnection, error) {
			return nil, domain.ErrNotConnected
		},
	}

	svc := newTestService(&draftRepoMock{}, campaigns, conns, &registryMock{})
	results, err := svc.PublishAll(authedCtx(userID), campaign.ID)
	require.NoError(t, err, "publishAll never fails on a per-platform problem")
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, []domain.CampaignStatus{domain.CampaignPublished}, campaigns.StatusUpdates())
}

func TestService_PublishAll_NoDrafts(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	campaigns := &campaignRepoMock{
		GetWithDraftsFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return &domain.Campaign{ID: id, UserID: uid}, nil
		},
	}

	svc := newTestService(nil, campaigns, nil, &registryMock{})
	_, err := svc.PublishAll(authedCtx(userID), uuid.New())
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, campaigns.StatusUpdates())
}

func TestService_PublishAll_CampaignMissing(t *testing.T) {
	t.Parallel()

	campaigns := &campaignRepoMock{
		GetWithDraftsFunc: func(ctx context.Context, id, uid uuid.UUID) (*domain.Campaign, error) {
			return nil, domain.ErrNotFound
		},
	}

	svc := newTestService(nil, campaigns, nil, &registryMock{})
	_, err := svc.PublishAll(authedCtx(uuid.New()), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
