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

var ErrNotFound = errors.New("goal not found")

type Goal struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Type         string
	Period       string
	TargetValue  float64
	CurrentValue float64
	StartDate    time.Time
	EndDate      time.Time
	Description  *string
	CreatedBy    *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const goalColumns = `id, user_id, type, period, target_value::float8, current_value::float8, start_date, end_date,
	description, created_by, created_at, updated_at`

func scanGoal(row pgx.Row) (Goal, error) {
	var g Goal
	err := row.Scan(&g.ID, &g.UserID, &g.Type, &g.Period, &g.TargetValue, &g.CurrentValue, &g.StartDate, &g.EndDate,
		&g.Description, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

type CreateGoalParams struct {
	UserID      uuid.UUID
	Type        string
	Period      string
	TargetValue float64
	StartDate   time.Time
	EndDate     time.Time
	Description *string
	CreatedBy   uuid.UUID
}

func (r *Repository) Create(ctx context.Context, params CreateGoalParams) (Goal, error) {
	return scanGoal(r.pool.QueryRow(ctx, `
		INSERT INTO goals (user_id, type, period, target_value, start_date, end_date, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+goalColumns,
		params.UserID, params.Type, params.Period, params.TargetValue, params.StartDate, params.EndDate,
		params.Description, params.CreatedBy,
	))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Goal, error) {
	g, err := scanGoal(r.pool.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Goal{}, ErrNotFound
	}
	return g, err
}

type UpdateGoalParams struct {
	TargetValue *float64
	StartDate   *time.Time
	EndDate     *time.Time
	Description *string
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateGoalParams) (Goal, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.TargetValue != nil, "target_value", params.TargetValue},
		{params.StartDate != nil, "start_date", params.StartDate},
		{params.EndDate != nil, "end_date", params.EndDate},
		{params.Description != nil, "description", params.Description},
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
	query := fmt.Sprintf(`UPDATE goals SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argIdx, goalColumns)

	g, err := scanGoal(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Goal{}, ErrNotFound
	}
	return g, err
}

func (r *Repository) SetCurrentValue(ctx context.Context, id uuid.UUID, value float64) (Goal, error) {
	g, err := scanGoal(r.pool.QueryRow(ctx, `
		UPDATE goals SET current_value = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+goalColumns, id, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return Goal{}, ErrNotFound
	}
	return g, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM goals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ListParams struct {
	UserID *uuid.UUID
	Type   *string
	Period *string
	// ActiveOn keeps goals whose range contains the date.
	ActiveOn *time.Time
	Offset   int
	Limit    int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Goal, int, error) {
	baseQuery := "FROM goals WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	addFilter(&baseQuery, &args, &argIdx, params.UserID != nil, " AND user_id = $%d", derefUUID(params.UserID))
	addFilter(&baseQuery, &args, &argIdx, params.Type != nil, " AND type = $%d", derefString(params.Type))
	addFilter(&baseQuery, &args, &argIdx, params.Period != nil, " AND period = $%d", derefString(params.Period))
	addFilter(&baseQuery, &args, &argIdx, params.ActiveOn != nil, " AND $%[1]d::date BETWEEN start_date AND end_date", derefTime(params.ActiveOn))

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s %s ORDER BY start_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		goalColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Goal, error) {
		return scanGoal(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// measureQueries compute a goal's live value for a user over [start, end].
var measureQueries = map[string]string{
	"revenue": `
		SELECT COALESCE(SUM(value), 0)::float8 FROM opportunities
		WHERE assigned_to = $1 AND stage = 'closed_won' AND closed_at::date BETWEEN $2 AND $3`,
	"deals": `
		SELECT COUNT(*)::float8 FROM opportunities
		WHERE assigned_to = $1 AND stage = 'closed_won' AND closed_at::date BETWEEN $2 AND $3`,
	"prospects": `
		SELECT COUNT(*)::float8 FROM prospects
		WHERE assigned_to = $1 AND deleted_at IS NULL AND created_at::date BETWEEN $2 AND $3`,
	"appointments": `
		SELECT COUNT(*)::float8 FROM appointments
		WHERE assigned_to = $1 AND status = 'completed' AND scheduled_at::date BETWEEN $2 AND $3`,
}

// Measure returns the achieved value of a goal type for a user.
func (r *Repository) Measure(ctx context.Context, goalType string, userID uuid.UUID, start, end time.Time) (float64, error) {
	query, ok := measureQueries[goalType]
	if !ok {
		return 0, fmt.Errorf("unknown goal type %q", goalType)
	}
	var value float64
	if err := r.pool.QueryRow(ctx, query, userID, start, end).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
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

func derefTime(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return *value
}
