package social

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crosspost/crosspost-backend/internal/config"
	"github.com/crosspost/crosspost-backend/internal/domain"
)

const (
	twitterAuthURL = "https://twitter.com/i/oauth2/authorize"
	twitterScopes  = "tweet.read tweet.write users.read offline.access"
)

// Twitter implements the OAuth 2.0 PKCE handshake and tweet publishing
// against the Twitter v2 API.
type Twitter struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	apiBaseURL   string
	httpClient   *http.Client
	log          *slog.Logger
}

// NewTwitter creates the Twitter adapter.
func NewTwitter(logger *slog.Logger, cfg config.OAuthConfig) *Twitter {
	return &Twitter{
		clientID:     cfg.TwitterClientID,
		clientSecret: cfg.TwitterClientSecret,
		redirectURI:  strings.TrimRight(cfg.CallbackBaseURL, "/") + "/api/platforms/callback/twitter",
		tokenURL:     "https://api.twitter.com/2/oauth2/token",
		apiBaseURL:   "https://api.twitter.com/2",
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		log:          logger.With("adapter", "twitter"),
	}
}

// NewTwitterWithBaseURLs creates an adapter pointing at custom endpoints (for testing).
func NewTwitterWithBaseURLs(logger *slog.Logger, cfg config.OAuthConfig, tokenURL, apiBaseURL string) *Twitter {
	t := NewTwitter(logger, cfg)
	t.tokenURL = tokenURL
	t.apiBaseURL = apiBaseURL
	return t
}

// UsesPKCE reports that Twitter requires a per-request code challenge.
func (t *Twitter) UsesPKCE() bool { return true }

// S256Challenge derives the code_challenge for a PKCE verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// AuthorizationURL builds the user-facing consent URL with an S256 PKCE
// challenge.
func (t *Twitter) AuthorizationURL(state, codeChallenge string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", t.clientID)
	q.Set("redirect_uri", t.redirectURI)
	q.Set("scope", twitterScopes)
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")
	return twitterAuthURL + "?" + q.Encode()
}

type twitterTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ExchangeCode swaps an authorization code plus its PKCE verifier for a
// token pair. Twitter issues refresh tokens when offline.access is
// granted.
func (t *Twitter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", t.redirectURI)
	form.Set("client_id", t.clientID)
	form.Set("code_verifier", codeVerifier)

	grant, err := t.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("twitter: token exchange: %w", err)
	}
	return grant, nil
}

// RefreshToken rotates the token pair. Twitter may issue a new refresh
// token alongside the access token.
func (t *Twitter) RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", t.clientID)

	grant, err := t.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("twitter: token refresh: %w", err)
	}
	return grant, nil
}

func (t *Twitter) tokenRequest(ctx context.Context, form url.Values) (*TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.clientID, t.clientSecret)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readAPIError(resp))
	}

	var parsed twitterTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("response missing access_token")
	}

	return &TokenGrant{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresIn:    parsed.ExpiresIn,
	}, nil
}

type twitterUserResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"data"`
}

// FetchProfile resolves the authenticated user's id and handle.
func (t *Twitter) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiBaseURL+"/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("twitter: create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter: fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter: fetch profile: unexpected status %d: %s", resp.StatusCode, readAPIError(resp))
	}

	var parsed twitterUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("twitter: decode profile: %w", err)
	}
	if parsed.Data.ID == "" {
		return nil, fmt.Errorf("twitter: profile response missing id")
	}

	return &Profile{ID: parsed.Data.ID, Username: parsed.Data.Username}, nil
}

type twitterTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Publish submits a text tweet. Media upload needs the v1.1 chunked
// endpoint and is not wired; attachments are ignored here.
func (t *Twitter) Publish(ctx context.Context, accessToken, content string, _ *domain.MediaFiles, conn *domain.SocialConnection) (*PostRef, error) {
	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return nil, fmt.Errorf("twitter: marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiBaseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("twitter: create tweet request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter: tweet request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter: tweet rejected: %s", readAPIError(resp))
	}

	var parsed twitterTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("twitter: decode tweet response: %w", err)
	}
	if parsed.Data.ID == "" {
		return nil, fmt.Errorf("twitter: tweet response missing id")
	}

	t.log.InfoContext(ctx, "tweet published", slog.String("post_id", parsed.Data.ID))

	return &PostRef{
		PostID:  parsed.Data.ID,
		PostURL: "https://twitter.com/" + conn.Username + "/status/" + parsed.Data.ID,
	}, nil
}
