package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"premunia_crm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("prospect not found")

type Prospect struct {
	ID               uuid.UUID
	FirstName        string
	LastName         string
	Email            *string
	Phone            *string
	BirthDate        *time.Time
	Age              int
	Address          *string
	City             *string
	PostalCode       *string
	BudgetMonthly    float64
	HealthStatus     string
	UrgencyLevel     string
	Score            int
	Segment          string
	Status           string
	AssignedTo       *uuid.UUID
	Source           *string
	Notes            *string
	CurrentInsurance *string
	LastContact      *time.Time
	NextFollowUp     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const prospectColumns = `id, first_name, last_name, email, phone, birth_date, age, address, city, postal_code,
	budget_monthly::float8, health_status, urgency_level, score, segment, status, assigned_to, source, notes,
	current_insurance, last_contact, next_follow_up, created_at, updated_at`

func scanProspect(row pgx.Row) (Prospect, error) {
	var p Prospect
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.BirthDate, &p.Age, &p.Address, &p.City, &p.PostalCode,
		&p.BudgetMonthly, &p.HealthStatus, &p.UrgencyLevel, &p.Score, &p.Segment, &p.Status, &p.AssignedTo, &p.Source, &p.Notes,
		&p.CurrentInsurance, &p.LastContact, &p.NextFollowUp, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

type CreateProspectParams struct {
	FirstName        string
	LastName         string
	Email            *string
	Phone            *string
	BirthDate        *time.Time
	Age              int
	Address          *string
	City             *string
	PostalCode       *string
	BudgetMonthly    float64
	HealthStatus     string
	UrgencyLevel     string
	Score            int
	Segment          string
	Status           string
	AssignedTo       *uuid.UUID
	Source           *string
	Notes            *string
	CurrentInsurance *string
	NextFollowUp     *time.Time
}

// Create inserts a prospect. It accepts a transaction so imports and
// conversions can reuse it.
func (r *Repository) Create(ctx context.Context, params CreateProspectParams) (Prospect, error) {
	return create(ctx, r.pool, params)
}

func create(ctx context.Context, q db.DBTX, params CreateProspectParams) (Prospect, error) {
	status := params.Status
	if status == "" {
		status = "new"
	}
	row := q.QueryRow(ctx, `
		INSERT INTO prospects (
			first_name, last_name, email, phone, birth_date, age, address, city, postal_code,
			budget_monthly, health_status, urgency_level, score, segment, status, assigned_to, source, notes,
			current_insurance, next_follow_up
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING `+prospectColumns,
		params.FirstName, params.LastName, params.Email, params.Phone, params.BirthDate, params.Age, params.Address, params.City, params.PostalCode,
		params.BudgetMonthly, params.HealthStatus, params.UrgencyLevel, params.Score, params.Segment, status, params.AssignedTo, params.Source, params.Notes,
		params.CurrentInsurance, params.NextFollowUp,
	)
	return scanProspect(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Prospect, error) {
	p, err := scanProspect(r.pool.QueryRow(ctx, `
		SELECT `+prospectColumns+`
		FROM prospects WHERE id = $1 AND deleted_at IS NULL
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Prospect{}, ErrNotFound
	}
	return p, err
}

type UpdateProspectParams struct {
	FirstName        *string
	LastName         *string
	Email            *string
	Phone            *string
	BirthDate        *time.Time
	ClearBirthDate   bool
	Age              *int
	Address          *string
	City             *string
	PostalCode       *string
	BudgetMonthly    *float64
	HealthStatus     *string
	UrgencyLevel     *string
	Score            *int
	Segment          *string
	AssignedTo       *uuid.UUID
	AssignedToSet    bool
	Source           *string
	Notes            *string
	CurrentInsurance *string
	LastContact      *time.Time
	NextFollowUp     *time.Time
}

// buildUpdateSet turns the non-nil params into SET clauses starting at $1.
func buildUpdateSet(params UpdateProspectParams) ([]string, []interface{}) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.FirstName != nil, "first_name", params.FirstName},
		{params.LastName != nil, "last_name", params.LastName},
		{params.Email != nil, "email", params.Email},
		{params.Phone != nil, "phone", params.Phone},
		{params.BirthDate != nil || params.ClearBirthDate, "birth_date", params.BirthDate},
		{params.Age != nil, "age", params.Age},
		{params.Address != nil, "address", params.Address},
		{params.City != nil, "city", params.City},
		{params.PostalCode != nil, "postal_code", params.PostalCode},
		{params.BudgetMonthly != nil, "budget_monthly", params.BudgetMonthly},
		{params.HealthStatus != nil, "health_status", params.HealthStatus},
		{params.UrgencyLevel != nil, "urgency_level", params.UrgencyLevel},
		{params.Score != nil, "score", params.Score},
		{params.Segment != nil, "segment", params.Segment},
		{params.AssignedToSet, "assigned_to", params.AssignedTo},
		{params.Source != nil, "source", params.Source},
		{params.Notes != nil, "notes", params.Notes},
		{params.CurrentInsurance != nil, "current_insurance", params.CurrentInsurance},
		{params.LastContact != nil, "last_contact", params.LastContact},
		{params.NextFollowUp != nil, "next_follow_up", params.NextFollowUp},
	}

	for _, field := range fields {
		if !field.enabled {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}
	return setClauses, args
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateProspectParams) (Prospect, error) {
	setClauses, args := buildUpdateSet(params)
	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE prospects SET %s
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING %s
	`, strings.Join(setClauses, ", "), len(args), prospectColumns)

	p, err := scanProspect(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Prospect{}, ErrNotFound
	}
	return p, err
}

// UpdateScore stores a recomputed score without touching updated_at.
func (r *Repository) UpdateScore(ctx context.Context, id uuid.UUID, score int, segment string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prospects SET score = $2, segment = $3
		WHERE id = $1 AND deleted_at IS NULL
	`, id, score, segment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Archive soft-deletes a prospect. Tasks and appointments are left untouched.
func (r *Repository) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prospects SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ListParams struct {
	ScopeUserID   *uuid.UUID
	AssignedTo    *uuid.UUID
	Status        *string
	Segment       *string
	HealthStatus  *string
	UrgencyLevel  *string
	MinScore      *int
	MaxScore      *int
	Search        string
	CreatedAtFrom *time.Time
	CreatedAtTo   *time.Time
	Offset        int
	Limit         int
	SortBy        string
	SortOrder     string
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Prospect, int, error) {
	whereClause, args, argIdx := buildProspectListWhere(params)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM prospects WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortColumn := mapProspectSortColumn(params.SortBy)
	sortOrder := "DESC"
	if params.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM prospects
		WHERE %s
		ORDER BY %s %s, id
		LIMIT $%d OFFSET $%d
	`, prospectColumns, whereClause, sortColumn, sortOrder, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	prospects := make([]Prospect, 0)
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, 0, err
		}
		prospects = append(prospects, p)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return prospects, total, nil
}

func buildProspectListWhere(params ListParams) (string, []interface{}, int) {
	whereClauses := []string{"deleted_at IS NULL"}
	args := []interface{}{}
	argIdx := 1

	add := func(clause string, value interface{}) {
		whereClauses = append(whereClauses, fmt.Sprintf(clause, argIdx))
		args = append(args, value)
		argIdx++
	}

	if params.ScopeUserID != nil {
		add("assigned_to = $%d", *params.ScopeUserID)
	}
	if params.AssignedTo != nil {
		add("assigned_to = $%d", *params.AssignedTo)
	}
	if params.Status != nil {
		add("status = $%d", *params.Status)
	}
	if params.Segment != nil {
		add("segment = $%d", *params.Segment)
	}
	if params.HealthStatus != nil {
		add("health_status = $%d", *params.HealthStatus)
	}
	if params.UrgencyLevel != nil {
		add("urgency_level = $%d", *params.UrgencyLevel)
	}
	if params.MinScore != nil {
		add("score >= $%d", *params.MinScore)
	}
	if params.MaxScore != nil {
		add("score <= $%d", *params.MaxScore)
	}
	if params.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR email ILIKE $%[1]d OR phone ILIKE $%[1]d OR city ILIKE $%[1]d)",
			argIdx,
		))
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}
	if params.CreatedAtFrom != nil {
		add("created_at >= $%d", *params.CreatedAtFrom)
	}
	if params.CreatedAtTo != nil {
		add("created_at < $%d", *params.CreatedAtTo)
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}

func mapProspectSortColumn(sortBy string) string {
	switch sortBy {
	case "score":
		return "score"
	case "lastName":
		return "last_name"
	case "budget":
		return "budget_monthly"
	case "nextFollowUp":
		return "next_follow_up"
	default:
		return "created_at"
	}
}

// ForEach streams every live prospect in id order, batchSize rows at a time.
// Used by the rescore and reindex commands.
func (r *Repository) ForEach(ctx context.Context, batchSize int, fn func(Prospect) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	var after uuid.UUID
	for {
		rows, err := r.pool.Query(ctx, `
			SELECT `+prospectColumns+`
			FROM prospects
			WHERE deleted_at IS NULL AND id > $1
			ORDER BY id
			LIMIT $2
		`, after, batchSize)
		if err != nil {
			return err
		}
		batch, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Prospect, error) {
			return scanProspect(row)
		})
		if err != nil {
			return err
		}
		for _, p := range batch {
			if err := fn(p); err != nil {
				return err
			}
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}

// ListTargets returns live, open prospects with an email for a campaign segment.
// An empty segment targets everyone.
func (r *Repository) ListTargets(ctx context.Context, segment string) ([]Prospect, error) {
	query := `
		SELECT ` + prospectColumns + `
		FROM prospects
		WHERE deleted_at IS NULL
			AND status NOT IN ('closed_won', 'closed_lost')
			AND email IS NOT NULL AND email <> ''
			AND ($1 = '' OR segment = $1)
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, segment)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Prospect, error) {
		return scanProspect(row)
	})
}

type StatusCount struct {
	Status   string
	Count    int
	AvgScore float64
}

// CountByStatus groups live prospects by status, optionally scoped to an assignee.
func (r *Repository) CountByStatus(ctx context.Context, scopeUserID *uuid.UUID) ([]StatusCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(AVG(score), 0)::float8
		FROM prospects
		WHERE deleted_at IS NULL AND ($1::uuid IS NULL OR assigned_to = $1)
		GROUP BY status
	`, scopeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]StatusCount, 0)
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count, &c.AvgScore); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
