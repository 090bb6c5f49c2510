// Package credential implements the LLM credential repository using PostgreSQL.
package credential

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/crosspost/crosspost-backend/internal/adapter/postgres"
	"github.com/crosspost/crosspost-backend/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo provides LLM credential persistence backed by PostgreSQL.
// A user has at most one credential row.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new credential repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Get returns the credential row for the user. A user who never
// configured a provider has no row, which maps to domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, userID uuid.UUID) (*domain.LLMCredential, error) {
	query, args, err := qb.Select("user_id", "provider", "model", "encrypted_api_key").
		From("llm_credentials").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c domain.LLMCredential
	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...)
	if err := row.Scan(&c.UserID, &c.Provider, &c.Model, &c.EncryptedAPIKey); err != nil {
		return nil, postgres.MapError(err, "llm_credential", userID)
	}
	return &c, nil
}

// Upsert stores the user's provider choice, model and encrypted key,
// replacing whatever was there before.
func (r *Repo) Upsert(ctx context.Context, c *domain.LLMCredential) error {
	query, args, err := qb.Insert("llm_credentials").
		Columns("user_id", "provider", "model", "encrypted_api_key").
		Values(c.UserID, c.Provider, c.Model, c.EncryptedAPIKey).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET " +
			"provider = EXCLUDED.provider, model = EXCLUDED.model, " +
			"encrypted_api_key = EXCLUDED.encrypted_api_key, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "llm_credential", c.UserID)
	}
	return nil
}

// Revoke clears provider, model and key in one statement so a partially
// revoked credential can never be observed. Revoking a user without a
// credential row is a no-op.
func (r *Repo) Revoke(ctx context.Context, userID uuid.UUID) error {
	query, args, err := qb.Update("llm_credentials").
		Set("provider", nil).
		Set("model", nil).
		Set("encrypted_api_key", nil).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "llm_credential", userID)
	}
	return nil
}
