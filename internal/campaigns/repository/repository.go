package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("campaign not found")

type Campaign struct {
	ID             uuid.UUID
	Name           string
	Description    *string
	Type           string
	TargetSegment  string
	Status         string
	TemplateKey    *string
	SentCount      int
	OpenedCount    int
	ClickedCount   int
	ConvertedCount int
	OpenRate       float64
	ClickRate      float64
	ConversionRate float64
	CreatedBy      *uuid.UUID
	ScheduledAt    *time.Time
	LaunchedAt     *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campaignColumns = `id, name, description, type, target_segment, status, template_key,
	sent_count, opened_count, clicked_count, converted_count,
	open_rate::float8, click_rate::float8, conversion_rate::float8,
	created_by, scheduled_at, launched_at, completed_at, created_at, updated_at`

// rateExpr recomputes a stored percentage from a counter and the sent total, capped at 100.
const rateExpr = `CASE WHEN %[2]s > 0 THEN LEAST(round(%[1]s * 100.0 / %[2]s, 2), 100) ELSE 0 END`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Type, &c.TargetSegment, &c.Status, &c.TemplateKey,
		&c.SentCount, &c.OpenedCount, &c.ClickedCount, &c.ConvertedCount,
		&c.OpenRate, &c.ClickRate, &c.ConversionRate,
		&c.CreatedBy, &c.ScheduledAt, &c.LaunchedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type CreateCampaignParams struct {
	Name          string
	Description   *string
	Type          string
	TargetSegment string
	TemplateKey   *string
	CreatedBy     uuid.UUID
	ScheduledAt   *time.Time
}

func (r *Repository) Create(ctx context.Context, params CreateCampaignParams) (Campaign, error) {
	query := `
		INSERT INTO campaigns (name, description, type, target_segment, template_key, created_by, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + campaignColumns
	return scanCampaign(r.pool.QueryRow(ctx, query,
		params.Name, params.Description, params.Type, params.TargetSegment, params.TemplateKey, params.CreatedBy, params.ScheduledAt))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	return c, err
}

type UpdateCampaignParams struct {
	Name          *string
	Description   *string
	Type          *string
	TargetSegment *string
	TemplateKey   *string
	ScheduledAt   *time.Time
}

// Update edits a campaign that has not been launched or is paused.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateCampaignParams) (Campaign, error) {
	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.Name != nil, "name", params.Name},
		{params.Description != nil, "description", params.Description},
		{params.Type != nil, "type", params.Type},
		{params.TargetSegment != nil, "target_segment", params.TargetSegment},
		{params.TemplateKey != nil, "template_key", params.TemplateKey},
		{params.ScheduledAt != nil, "scheduled_at", params.ScheduledAt},
	}

	set := make([]string, 0, len(fields)+1)
	args := []interface{}{id}
	for _, f := range fields {
		if !f.enabled {
			continue
		}
		args = append(args, f.value)
		set = append(set, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}
	set = append(set, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE campaigns SET %s WHERE id = $1 AND status IN ('draft', 'paused') RETURNING %s`,
		strings.Join(set, ", "), campaignColumns)
	c, err := scanCampaign(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	return c, err
}

// SetStatus moves a campaign from one of the allowed statuses to status.
// ErrNotFound means the campaign is missing or not in an allowed status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string, from ...string) (Campaign, error) {
	query := `
		UPDATE campaigns
		SET status = $2,
			launched_at = CASE WHEN $2 = 'active' THEN COALESCE(launched_at, now()) ELSE launched_at END,
			updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + campaignColumns
	c, err := scanCampaign(r.pool.QueryRow(ctx, query, id, status, from))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	return c, err
}

// CompleteDispatch adds delivered messages and closes an active campaign.
func (r *Repository) CompleteDispatch(ctx context.Context, id uuid.UUID, sent int) (Campaign, error) {
	query := fmt.Sprintf(`
		UPDATE campaigns
		SET sent_count = sent_count + $2,
			open_rate = %s,
			click_rate = %s,
			conversion_rate = %s,
			status = 'completed',
			completed_at = now(),
			updated_at = now()
		WHERE id = $1 AND status = 'active'
		RETURNING %s`,
		fmt.Sprintf(rateExpr, "opened_count", "(sent_count + $2)"),
		fmt.Sprintf(rateExpr, "clicked_count", "(sent_count + $2)"),
		fmt.Sprintf(rateExpr, "converted_count", "(sent_count + $2)"),
		campaignColumns)
	c, err := scanCampaign(r.pool.QueryRow(ctx, query, id, sent))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	return c, err
}

// AddEngagement increments the engagement counters and recomputes the rates
// as percentages of sent_count.
func (r *Repository) AddEngagement(ctx context.Context, id uuid.UUID, opened, clicked, converted int) (Campaign, error) {
	query := fmt.Sprintf(`
		UPDATE campaigns
		SET opened_count = opened_count + $2,
			clicked_count = clicked_count + $3,
			converted_count = converted_count + $4,
			open_rate = %s,
			click_rate = %s,
			conversion_rate = %s,
			updated_at = now()
		WHERE id = $1
		RETURNING %s`,
		fmt.Sprintf(rateExpr, "(opened_count + $2)", "sent_count"),
		fmt.Sprintf(rateExpr, "(clicked_count + $3)", "sent_count"),
		fmt.Sprintf(rateExpr, "(converted_count + $4)", "sent_count"),
		campaignColumns)
	c, err := scanCampaign(r.pool.QueryRow(ctx, query, id, opened, clicked, converted))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ListParams struct {
	Status        *string
	Type          *string
	TargetSegment *string
	Search        string
	Offset        int
	Limit         int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Campaign, int, error) {
	where, args, argIdx := buildCampaignListWhere(params)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM campaigns%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		campaignColumns, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Campaign, error) {
		return scanCampaign(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func buildCampaignListWhere(params ListParams) (string, []interface{}, int) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	addFilter(&where, &args, &argIdx, params.Status != nil, " AND status = $%d", derefString(params.Status))
	addFilter(&where, &args, &argIdx, params.Type != nil, " AND type = $%d", derefString(params.Type))
	addFilter(&where, &args, &argIdx, params.TargetSegment != nil, " AND target_segment = $%d", derefString(params.TargetSegment))
	addFilter(&where, &args, &argIdx, params.Search != "", " AND name ILIKE $%d", "%"+params.Search+"%")

	return where, args, argIdx
}

// Performance sums delivery and engagement over campaigns created in [from, to).
type Performance struct {
	Sent      int
	Opened    int
	Clicked   int
	Converted int
}

func (r *Repository) Performance(ctx context.Context, from, to time.Time) (Performance, error) {
	var p Performance
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(sent_count), 0), COALESCE(SUM(opened_count), 0),
			COALESCE(SUM(clicked_count), 0), COALESCE(SUM(converted_count), 0)
		FROM campaigns
		WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&p.Sent, &p.Opened, &p.Clicked, &p.Converted)
	return p, err
}

func addFilter(baseQuery *string, args *[]interface{}, argIndex *int, apply bool, clause string, value interface{}) {
	if !apply {
		return
	}
	*baseQuery += fmt.Sprintf(clause, *argIndex)
	*args = append(*args, value)
	*argIndex++
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
