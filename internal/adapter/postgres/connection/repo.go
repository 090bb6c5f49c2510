// Package connection implements the SocialConnection repository using PostgreSQL.
package connection

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/crosspost/crosspost-backend/internal/adapter/postgres"
	"github.com/crosspost/crosspost-backend/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const connectionColumns = "id, user_id, platform, platform_user_id, username, " +
	"encrypted_access_token, encrypted_refresh_token, token_expires_at, is_active, created_at, updated_at"

// Repo provides social-connection persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new connection repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// GetByUserAndPlatform returns the connection for (user, platform)
// regardless of active state. Callback upserts need inactive rows too.
func (r *Repo) GetByUserAndPlatform(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.SocialConnection, error) {
	query, args, err := qb.Select(connectionColumns).
		From("social_connections").
		Where(sq.Eq{"user_id": userID, "platform": platform}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return r.queryOne(ctx, query, args)
}

// GetActive returns the active connection for (user, platform).
func (r *Repo) GetActive(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.SocialConnection, error) {
	query, args, err := qb.Select(connectionColumns).
		From("social_connections").
		Where(sq.Eq{"user_id": userID, "platform": platform, "is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return r.queryOne(ctx, query, args)
}

// ListActive returns every active connection for the user, ordered by
// platform for stable output.
func (r *Repo) ListActive(ctx context.Context, userID uuid.UUID) ([]domain.SocialConnection, error) {
	query, args, err := qb.Select(connectionColumns).
		From("social_connections").
		Where(sq.Eq{"user_id": userID, "is_active": true}).
		OrderBy("platform").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "social_connection", uuid.Nil)
	}
	defer rows.Close()

	var out []domain.SocialConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a new connection.
func (r *Repo) Create(ctx context.Context, c *domain.SocialConnection) error {
	query, args, err := qb.Insert("social_connections").
		Columns("id", "user_id", "platform", "platform_user_id", "username",
			"encrypted_access_token", "encrypted_refresh_token", "token_expires_at", "is_active").
		Values(c.ID, c.UserID, c.Platform, c.PlatformUserID, c.Username,
			c.EncryptedAccessToken, c.EncryptedRefreshToken, c.TokenExpiresAt, c.IsActive).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "social_connection", c.ID)
	}
	return nil
}

// Update rewrites every mutable field of the connection.
func (r *Repo) Update(ctx context.Context, c *domain.SocialConnection) error {
	query, args, err := qb.Update("social_connections").
		Set("platform_user_id", c.PlatformUserID).
		Set("username", c.Username).
		Set("encrypted_access_token", c.EncryptedAccessToken).
		Set("encrypted_refresh_token", c.EncryptedRefreshToken).
		Set("token_expires_at", c.TokenExpiresAt).
		Set("is_active", c.IsActive).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "social_connection", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("social_connection %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// UpdateTokens stores a rotated token pair after a successful refresh.
// A nil encryptedRefresh keeps the previously stored refresh token.
func (r *Repo) UpdateTokens(ctx context.Context, id uuid.UUID, encryptedAccess string, encryptedRefresh *string, expiresAt *time.Time) error {
	b := qb.Update("social_connections").
		Set("encrypted_access_token", encryptedAccess).
		Set("token_expires_at", expiresAt).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})
	if encryptedRefresh != nil {
		b = b.Set("encrypted_refresh_token", *encryptedRefresh)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "social_connection", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("social_connection %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Deactivate soft-deletes the connection for (user, platform). Returns
// domain.ErrNotFound when no record exists at all; deactivating an
// already-inactive connection succeeds.
func (r *Repo) Deactivate(ctx context.Context, userID uuid.UUID, platform domain.Platform) error {
	query, args, err := qb.Update("social_connections").
		Set("is_active", false).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"user_id": userID, "platform": platform}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "social_connection", uuid.Nil)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("social_connection for user %s platform %s: %w", userID, platform, domain.ErrNotFound)
	}
	return nil
}

func (r *Repo) queryOne(ctx context.Context, query string, args []any) (*domain.SocialConnection, error) {
	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "social_connection", uuid.Nil)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, postgres.MapError(err, "social_connection", uuid.Nil)
		}
		return nil, fmt.Errorf("social_connection: %w", domain.ErrNotFound)
	}

	return scanConnection(rows)
}

func scanConnection(row pgx.Row) (*domain.SocialConnection, error) {
	var c domain.SocialConnection
	err := row.Scan(
		&c.ID, &c.UserID, &c.Platform, &c.PlatformUserID, &c.Username,
		&c.EncryptedAccessToken, &c.EncryptedRefreshToken, &c.TokenExpiresAt,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
