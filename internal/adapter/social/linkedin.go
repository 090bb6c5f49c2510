package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crosspost/crosspost-backend/internal/config"
	"github.com/crosspost/crosspost-backend/internal/domain"
)

const (
	linkedInAuthURL = "https://www.linkedin.com/oauth/v2/authorization"
	linkedInScopes  = "r_liteprofile r_emailaddress w_member_social"
)

// LinkedIn implements the OAuth handshake and UGC post publishing
// against the LinkedIn v2 API.
type LinkedIn struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	apiBaseURL   string
	httpClient   *http.Client
	log          *slog.Logger
}

// NewLinkedIn creates the LinkedIn adapter.
func NewLinkedIn(logger *slog.Logger, cfg config.OAuthConfig) *LinkedIn {
	return &LinkedIn{
		clientID:     cfg.LinkedInClientID,
		clientSecret: cfg.LinkedInClientSecret,
		redirectURI:  strings.TrimRight(cfg.CallbackBaseURL, "/") + "/api/platforms/callback/linkedin",
		tokenURL:     "https://www.linkedin.com/oauth/v2/accessToken",
		apiBaseURL:   "https://api.linkedin.com/v2",
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		log:          logger.With("adapter", "linkedin"),
	}
}

// NewLinkedInWithBaseURLs creates an adapter pointing at custom endpoints (for testing).
func NewLinkedInWithBaseURLs(logger *slog.Logger, cfg config.OAuthConfig, tokenURL, apiBaseURL string) *LinkedIn {
	l := NewLinkedIn(logger, cfg)
	l.tokenURL = tokenURL
	l.apiBaseURL = apiBaseURL
	return l
}

// UsesPKCE reports that LinkedIn uses the plain confidential-client flow.
func (l *LinkedIn) UsesPKCE() bool { return false }

// AuthorizationURL builds the user-facing consent URL. The codeChallenge
// parameter is unused: LinkedIn authenticates with the client secret.
func (l *LinkedIn) AuthorizationURL(state, _ string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", l.clientID)
	q.Set("redirect_uri", l.redirectURI)
	q.Set("state", state)
	q.Set("scope", linkedInScopes)
	return linkedInAuthURL + "?" + q.Encode()
}

type linkedInTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeCode swaps an authorization code for an access token.
// LinkedIn does not issue refresh tokens on this flow.
func (l *LinkedIn) ExchangeCode(ctx context.Context, code, _ string) (*TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", l.redirectURI)
	form.Set("client_id", l.clientID)
	form.Set("client_secret", l.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("linkedin: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var parsed linkedInTokenResponse
	if err := l.doJSON(req, &parsed); err != nil {
		return nil, fmt.Errorf("linkedin: token exchange: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("linkedin: token response missing access_token")
	}

	return &TokenGrant{AccessToken: parsed.AccessToken, ExpiresIn: parsed.ExpiresIn}, nil
}

type linkedInProfileResponse struct {
	ID                 string `json:"id"`
	LocalizedFirstName string `json:"localizedFirstName"`
	LocalizedLastName  string `json:"localizedLastName"`
}

// FetchProfile resolves the authenticated member's id and display name.
func (l *LinkedIn) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	profile, err := l.fetchMe(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	return &Profile{
		ID:       profile.ID,
		Username: strings.TrimSpace(profile.LocalizedFirstName + " " + profile.LocalizedLastName),
	}, nil
}

// RefreshToken always fails: LinkedIn member tokens are long-lived (60
// days) and cannot be refreshed programmatically on this product tier.
func (l *LinkedIn) RefreshToken(_ context.Context, _ string) (*TokenGrant, error) {
	return nil, ErrRefreshUnsupported
}

// Publish resolves the member id, then submits a UGC share. Media upload
// is not part of the v2 text share; attachments are ignored here.
func (l *LinkedIn) Publish(ctx context.Context, accessToken, content string, _ *domain.MediaFiles, _ *domain.SocialConnection) (*PostRef, error) {
	profile, err := l.fetchMe(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	share := map[string]any{
		"author":         "urn:li:person:" + profile.ID,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]any{"text": content},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(share)
	if err != nil {
		return nil, fmt.Errorf("linkedin: marshal share: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiBaseURL+"/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("linkedin: create post request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("linkedin: post request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("linkedin: post rejected: %s", readAPIError(resp))
	}

	// The created post URN arrives in a response header.
	urn := resp.Header.Get("X-Linkedin-Id")
	if urn == "" {
		urn = resp.Header.Get("X-Restli-Id")
	}
	postID := urn
	if i := strings.LastIndex(urn, ":"); i >= 0 {
		postID = urn[i+1:]
	}

	l.log.InfoContext(ctx, "post published", slog.String("post_id", postID))

	return &PostRef{
		PostID:  postID,
		PostURL: "https://www.linkedin.com/feed/update/urn:li:share:" + postID,
	}, nil
}

func (l *LinkedIn) fetchMe(ctx context.Context, accessToken string) (*linkedInProfileResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiBaseURL+"/me", nil)
	if err != nil {
		return nil, fmt.Errorf("linkedin: create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var parsed linkedInProfileResponse
	if err := l.doJSON(req, &parsed); err != nil {
		return nil, fmt.Errorf("linkedin: fetch profile: %w", err)
	}
	if parsed.ID == "" {
		return nil, fmt.Errorf("linkedin: profile response missing id")
	}
	return &parsed, nil
}

func (l *LinkedIn) doJSON(req *http.Request, out any) error {
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readAPIError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readAPIError extracts a short error message from a failed response body.
func readAPIError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil || len(body) == 0 {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}

	var parsed struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Message != "":
			return parsed.Message
		case parsed.Detail != "":
			return parsed.Detail
		case parsed.Error != "":
			return parsed.Error
		}
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
