// Package campaign implements the Campaign repository using PostgreSQL.
package campaign

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/crosspost/crosspost-backend/internal/adapter/postgres"
	"github.com/crosspost/crosspost-backend/internal/adapter/postgres/draft"
	"github.com/crosspost/crosspost-backend/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const campaignColumns = "id, user_id, title, original_content, media_files, links, status, created_at, updated_at"

// Repo provides campaign persistence backed by PostgreSQL.
type Repo struct {
	pool   *pgxpool.Pool
	drafts *draft.Repo
}

// New creates a new campaign repository.
func New(pool *pgxpool.Pool, drafts *draft.Repo) *Repo {
	return &Repo{pool: pool, drafts: drafts}
}

// Create inserts a new campaign.
func (r *Repo) Create(ctx context.Context, c *domain.Campaign) error {
	media, err := marshalJSONB(c.MediaFiles)
	if err != nil {
		return fmt.Errorf("marshal media files: %w", err)
	}
	links, err := marshalJSONB(c.Links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}

	query, args, err := qb.Insert("campaigns").
		Columns("id", "user_id", "title", "original_content", "media_files", "links", "status").
		Values(c.ID, c.UserID, c.Title, c.OriginalContent, media, links, c.Status).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "campaign", c.ID)
	}
	return nil
}

// GetByIDForUser returns the campaign only if it belongs to the user.
// Another user's campaign is indistinguishable from a missing one.
func (r *Repo) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error) {
	query, args, err := qb.Select(campaignColumns).
		From("campaigns").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...)
	c, err := scanCampaign(row)
	if err != nil {
		return nil, postgres.MapError(err, "campaign", id)
	}
	return c, nil
}

// GetWithDrafts returns the campaign with its platform drafts attached.
func (r *Repo) GetWithDrafts(ctx context.Context, id, userID uuid.UUID) (*domain.Campaign, error) {
	c, err := r.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	drafts, err := r.drafts.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Drafts = drafts
	return c, nil
}

// List returns the user's campaigns, newest first. Drafts are not loaded.
func (r *Repo) List(ctx context.Context, userID uuid.UUID) ([]domain.Campaign, error) {
	query, args, err := qb.Select(campaignColumns).
		From("campaigns").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "campaign", userID)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateStatus transitions the campaign lifecycle state.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	query, args, err := qb.Update("campaigns").
		Set("status", status).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "campaign", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var (
		c        domain.Campaign
		mediaRaw []byte
		linksRaw []byte
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.Title, &c.OriginalContent,
		&mediaRaw, &linksRaw, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(mediaRaw) > 0 {
		if err := json.Unmarshal(mediaRaw, &c.MediaFiles); err != nil {
			return nil, fmt.Errorf("unmarshal media files: %w", err)
		}
	}
	if len(linksRaw) > 0 {
		if err := json.Unmarshal(linksRaw, &c.Links); err != nil {
			return nil, fmt.Errorf("unmarshal links: %w", err)
		}
	}
	return &c, nil
}

// marshalJSONB keeps NULL for absent values instead of storing "null".
func marshalJSONB(v any) ([]byte, error) {
	switch t := v.(type) {
	case *domain.MediaFiles:
		if t == nil {
			return nil, nil
		}
	case []domain.Link:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
