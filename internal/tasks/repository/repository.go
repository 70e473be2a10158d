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

var ErrNotFound = errors.New("task not found")

type Task struct {
	ID          uuid.UUID
	Title       string
	Description *string
	ProspectID  *uuid.UUID
	AssignedTo  *uuid.UUID
	CreatedBy   *uuid.UUID
	Status      string
	Priority    int
	DueDate     *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, title, description, prospect_id, assigned_to, created_by, status, priority,
	due_date, completed_at, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.ProspectID, &t.AssignedTo, &t.CreatedBy,
		&t.Status, &t.Priority, &t.DueDate, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type CreateTaskParams struct {
	Title       string
	Description *string
	ProspectID  *uuid.UUID
	AssignedTo  *uuid.UUID
	CreatedBy   uuid.UUID
	Priority    int
	DueDate     *time.Time
}

func (r *Repository) Create(ctx context.Context, params CreateTaskParams) (Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, prospect_id, assigned_to, created_by, priority, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+taskColumns,
		params.Title, params.Description, params.ProspectID, params.AssignedTo, params.CreatedBy,
		params.Priority, params.DueDate,
	))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

type UpdateTaskParams struct {
	Title         *string
	Description   *string
	ProspectID    *uuid.UUID
	AssignedTo    *uuid.UUID
	AssignedToSet bool
	Status        *string
	Priority      *int
	DueDate       *time.Time
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateTaskParams) (Task, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.Title != nil, "title", params.Title},
		{params.Description != nil, "description", params.Description},
		{params.ProspectID != nil, "prospect_id", params.ProspectID},
		{params.AssignedToSet, "assigned_to", params.AssignedTo},
		{params.Status != nil, "status", params.Status},
		{params.Priority != nil, "priority", params.Priority},
		{params.DueDate != nil, "due_date", params.DueDate},
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
	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argIdx, taskColumns)

	t, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// Complete marks the task done. Completing an already-done task keeps its
// original completion time.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID) (Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks SET status = 'done', completed_at = COALESCE(completed_at, now()), updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
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
	AssignedTo  *uuid.UUID
	ProspectID  *uuid.UUID
	Status      *string
	DueBefore   *time.Time
	Overdue     bool
	Now         time.Time
	Offset      int
	Limit       int
	SortBy      string
	SortOrder   string
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Task, int, error) {
	baseQuery, args, argIdx := buildTaskListWhere(params)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortDir := "ASC"
	if params.SortOrder == "desc" {
		sortDir = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`,
		taskColumns, baseQuery, mapTaskSortColumn(params.SortBy), sortDir, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func buildTaskListWhere(params ListParams) (string, []interface{}, int) {
	baseQuery := "FROM tasks WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	addFilter(&baseQuery, &args, &argIdx, params.ScopeUserID != nil, " AND assigned_to = $%d", derefUUID(params.ScopeUserID))
	addFilter(&baseQuery, &args, &argIdx, params.AssignedTo != nil, " AND assigned_to = $%d", derefUUID(params.AssignedTo))
	addFilter(&baseQuery, &args, &argIdx, params.ProspectID != nil, " AND prospect_id = $%d", derefUUID(params.ProspectID))
	addFilter(&baseQuery, &args, &argIdx, params.Status != nil, " AND status = $%d", derefString(params.Status))
	addFilter(&baseQuery, &args, &argIdx, params.DueBefore != nil, " AND due_date < $%d", derefTime(params.DueBefore))
	addFilter(&baseQuery, &args, &argIdx, params.Overdue, " AND status = 'pending' AND due_date < $%d", params.Now)

	return baseQuery, args, argIdx
}

func mapTaskSortColumn(sortBy string) string {
	switch sortBy {
	case "priority":
		return "priority"
	case "createdAt":
		return "created_at"
	case "title":
		return "title"
	default:
		return "due_date"
	}
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
