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

var ErrNotFound = errors.New("opportunity not found")

type Opportunity struct {
	ID                uuid.UUID
	ProspectID        uuid.UUID
	Title             string
	Value             float64
	Stage             string
	Probability       int
	ExpectedCloseDate *time.Time
	AssignedTo        *uuid.UUID
	ClosedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const opportunityColumns = `id, prospect_id, title, value::float8, stage, probability, expected_close_date,
	assigned_to, closed_at, created_at, updated_at`

func scanOpportunity(row pgx.Row) (Opportunity, error) {
	var o Opportunity
	err := row.Scan(&o.ID, &o.ProspectID, &o.Title, &o.Value, &o.Stage, &o.Probability, &o.ExpectedCloseDate,
		&o.AssignedTo, &o.ClosedAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

type CreateOpportunityParams struct {
	ProspectID        uuid.UUID
	Title             string
	Value             float64
	Stage             string
	Probability       int
	ExpectedCloseDate *time.Time
	AssignedTo        *uuid.UUID
}

func (r *Repository) Create(ctx context.Context, params CreateOpportunityParams) (Opportunity, error) {
	return scanOpportunity(r.pool.QueryRow(ctx, `
		INSERT INTO opportunities (prospect_id, title, value, stage, probability, expected_close_date, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+opportunityColumns,
		params.ProspectID, params.Title, params.Value, params.Stage, params.Probability,
		params.ExpectedCloseDate, params.AssignedTo,
	))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Opportunity, error) {
	o, err := scanOpportunity(r.pool.QueryRow(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Opportunity{}, ErrNotFound
	}
	return o, err
}

type UpdateOpportunityParams struct {
	Title             *string
	Value             *float64
	Probability       *int
	ExpectedCloseDate *time.Time
	AssignedTo        *uuid.UUID
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateOpportunityParams) (Opportunity, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.Title != nil, "title", params.Title},
		{params.Value != nil, "value", params.Value},
		{params.Probability != nil, "probability", params.Probability},
		{params.ExpectedCloseDate != nil, "expected_close_date", params.ExpectedCloseDate},
		{params.AssignedTo != nil, "assigned_to", params.AssignedTo},
	}
	for _, field := range fields {
		if !field.enabled {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}
	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE opportunities SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argIdx, opportunityColumns)

	o, err := scanOpportunity(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Opportunity{}, ErrNotFound
	}
	return o, err
}

// MoveStage sets the stage and probability. closed_at is stamped on the first
// move into a closed stage and cleared when the deal is reopened.
func (r *Repository) MoveStage(ctx context.Context, id uuid.UUID, stage string, probability int) (Opportunity, error) {
	o, err := scanOpportunity(r.pool.QueryRow(ctx, `
		UPDATE opportunities SET
			stage = $2,
			probability = $3,
			closed_at = CASE
				WHEN $2 IN ('closed_won', 'closed_lost') THEN COALESCE(closed_at, now())
				ELSE NULL
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+opportunityColumns,
		id, stage, probability,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Opportunity{}, ErrNotFound
	}
	return o, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ListParams struct {
	ScopeUserID *uuid.UUID
	Stage       *string
	ProspectID  *uuid.UUID
	Offset      int
	Limit       int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Opportunity, int, error) {
	baseQuery := "FROM opportunities WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	addFilter(&baseQuery, &args, &argIdx, params.ScopeUserID != nil, " AND assigned_to = $%d", derefUUID(params.ScopeUserID))
	addFilter(&baseQuery, &args, &argIdx, params.Stage != nil, " AND stage = $%d", derefString(params.Stage))
	addFilter(&baseQuery, &args, &argIdx, params.ProspectID != nil, " AND prospect_id = $%d", derefUUID(params.ProspectID))

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s %s ORDER BY expected_close_date ASC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`,
		opportunityColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Opportunity, error) {
		return scanOpportunity(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func addFilter(baseQuery *string, args *[]interface{}, argIndex *int, apply bool, clause string, value interface{}) {
	if !apply {
		return
	}
	*baseQuery += fmt.Sprintf(clause, *argIndex)
	*args = append(*args, value)
	*argIndex++
}

func derefUUID(value *uuid.UUID) uuid.UUID {
	if value == nil {
		return uuid.UUID{}
	}
	return *value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
