package connection

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/crosspost/crosspost-backend/internal/domain"
)

// stateClaims is the payload of the signed OAuth state token. The PKCE
// verifier travels inside it encrypted, so the state round-trip needs no
// server-side session storage.
type stateClaims struct {
	Platform string `json:"platform"`
	Verifier string `json:"verifier,omitempty"`
	Nonce    string `json:"nonce"`
	jwt.RegisteredClaims
}

// stateManager issues and verifies the state parameter of the OAuth
// handshake as an HS256 JWT.
type stateManager struct {
	secret []byte
	ttl    time.Duration
}

func newStateManager(secret string, ttl time.Duration) *stateManager {
	return &stateManager{secret: []byte(secret), ttl: ttl}
}

// Issue signs a state token binding the handshake to the user and
// platform. encryptedVerifier may be empty for platforms without PKCE.
func (m *stateManager) Issue(userID uuid.UUID, platform domain.Platform, encryptedVerifier string) (string, error) {
	now := time.Now().UTC()
	claims := stateClaims{
		Platform: string(platform),
		Verifier: encryptedVerifier,
		Nonce:    uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign state token: %w", err)
	}
	return token, nil
}

// Verify parses a state token. Any defect, wrong signature, expiry,
// malformed subject, comes back as domain.ErrBadCallback.
func (m *stateManager) Verify(state string) (uuid.UUID, domain.Platform, string, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, "", "", fmt.Errorf("%w: %v", domain.ErrBadCallback, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", "", fmt.Errorf("%w: bad subject", domain.ErrBadCallback)
	}

	platform := domain.Platform(claims.Platform)
	if !platform.IsValid() {
		return uuid.Nil, "", "", fmt.Errorf("%w: bad platform %q", domain.ErrBadCallback, claims.Platform)
	}

	return userID, platform, claims.Verifier, nil
}
