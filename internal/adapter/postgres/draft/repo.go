// Package draft implements the per-platform ContentDraft repository
// using PostgreSQL.
package draft

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/crosspost/crosspost-backend/internal/adapter/postgres"
	"github.com/crosspost/crosspost-backend/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const draftColumns = "id, campaign_id, platform, variations, selected_content, final_content, " +
	"status, post_id, post_url, iteration_history, posted_at, created_at, updated_at"

// Repo provides content draft persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new draft repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Replace upserts the draft for (campaign, platform). Regeneration
// replaces variations wholesale and resets selection, publish state and
// iteration history, so a regenerated draft starts clean.
func (r *Repo) Replace(ctx context.Context, d *domain.ContentDraft) error {
	vs := d.Variations
	if vs == nil {
		vs = []domain.Variation{}
	}
	variations, err := json.Marshal(vs)
	if err != nil {
		return fmt.Errorf("marshal variations: %w", err)
	}
	history, err := json.Marshal(emptyIfNil(d.IterationHistory))
	if err != nil {
		return fmt.Errorf("marshal iteration history: %w", err)
	}

	query, args, err := qb.Insert("platform_contents").
		Columns("id", "campaign_id", "platform", "variations", "selected_content",
			"final_content", "status", "post_id", "post_url", "iteration_history", "posted_at").
		Values(d.ID, d.CampaignID, d.Platform, variations, d.SelectedContent,
			d.FinalContent, d.Status, d.PostID, d.PostURL, history, d.PostedAt).
		Suffix("ON CONFLICT (campaign_id, platform) DO UPDATE SET " +
			"variations = EXCLUDED.variations, selected_content = EXCLUDED.selected_content, " +
			"final_content = EXCLUDED.final_content, status = EXCLUDED.status, " +
			"post_id = EXCLUDED.post_id, post_url = EXCLUDED.post_url, " +
			"iteration_history = EXCLUDED.iteration_history, posted_at = EXCLUDED.posted_at, " +
			"updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "content_draft", d.ID)
	}
	return nil
}

// GetByID returns one draft.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ContentDraft, error) {
	query, args, err := qb.Select(draftColumns).
		From("platform_contents").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...)
	d, err := scanDraft(row)
	if err != nil {
		return nil, postgres.MapError(err, "content_draft", id)
	}
	return d, nil
}

// GetByCampaignAndPlatform returns the draft for (campaign, platform).
func (r *Repo) GetByCampaignAndPlatform(ctx context.Context, campaignID uuid.UUID, platform domain.Platform) (*domain.ContentDraft, error) {
	query, args, err := qb.Select(draftColumns).
		From("platform_contents").
		Where(sq.Eq{"campaign_id": campaignID, "platform": platform}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...)
	d, err := scanDraft(row)
	if err != nil {
		return nil, postgres.MapError(err, "content_draft", campaignID)
	}
	return d, nil
}

// ListByCampaign returns every draft of the campaign, ordered by
// platform for stable output.
func (r *Repo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.ContentDraft, error) {
	query, args, err := qb.Select(draftColumns).
		From("platform_contents").
		Where(sq.Eq{"campaign_id": campaignID}).
		OrderBy("platform").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "content_draft", campaignID)
	}
	defer rows.Close()

	var out []domain.ContentDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// UpdateRefinement persists a refinement step: the new selected content
// plus the grown iteration history.
func (r *Repo) UpdateRefinement(ctx context.Context, d *domain.ContentDraft) error {
	history, err := json.Marshal(emptyIfNil(d.IterationHistory))
	if err != nil {
		return fmt.Errorf("marshal iteration history: %w", err)
	}

	query, args, err := qb.Update("platform_contents").
		Set("selected_content", d.SelectedContent).
		Set("iteration_history", history).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": d.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "content_draft", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("content_draft %s: %w", d.ID, domain.ErrNotFound)
	}
	return nil
}

// UpdatePublishState persists the outcome of a publish attempt, both
// success (post id, url, posted_at) and failure (cleared identifiers).
func (r *Repo) UpdatePublishState(ctx context.Context, d *domain.ContentDraft) error {
	query, args, err := qb.Update("platform_contents").
		Set("status", d.Status).
		Set("post_id", d.PostID).
		Set("post_url", d.PostURL).
		Set("posted_at", d.PostedAt).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": d.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "content_draft", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("content_draft %s: %w", d.ID, domain.ErrNotFound)
	}
	return nil
}

func scanDraft(row pgx.Row) (*domain.ContentDraft, error) {
	var (
		d             domain.ContentDraft
		variationsRaw []byte
		historyRaw    []byte
	)
	err := row.Scan(
		&d.ID, &d.CampaignID, &d.Platform, &variationsRaw, &d.SelectedContent,
		&d.FinalContent, &d.Status, &d.PostID, &d.PostURL, &historyRaw,
		&d.PostedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(variationsRaw, &d.Variations); err != nil {
		return nil, fmt.Errorf("unmarshal variations: %w", err)
	}
	if err := json.Unmarshal(historyRaw, &d.IterationHistory); err != nil {
		return nil, fmt.Errorf("unmarshal iteration history: %w", err)
	}
	return &d, nil
}

// emptyIfNil keeps the jsonb column as [] instead of null.
func emptyIfNil(h []domain.Iteration) []domain.Iteration {
	if h == nil {
		return []domain.Iteration{}
	}
	return h
}
