package exports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProspectRow is one line of the prospects export.
type ProspectRow struct {
	ID            uuid.UUID
	FirstName     string
	LastName      string
	Email         *string
	Phone         *string
	Age           int
	PostalCode    *string
	City          *string
	BudgetMonthly float64
	HealthStatus  string
	UrgencyLevel  string
	Score         int
	Segment       string
	Status        string
	Source        *string
	AssignedTo    *uuid.UUID
	CreatedAt     time.Time
}

// Filter narrows the export. ScopeUserID limits rows to one assignee.
type Filter struct {
	ScopeUserID *uuid.UUID
	Status      *string
	Segment     *string
}

// Repository provides data access for export operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StreamProspects calls fn for every live prospect matching filter, oldest
// first, without buffering the result set.
func (r *Repository) StreamProspects(ctx context.Context, filter Filter, fn func(ProspectRow) error) error {
	query := `
		SELECT id, first_name, last_name, email, phone, age, postal_code, city,
			budget_monthly, health_status, urgency_level, score, segment, status,
			source, assigned_to, created_at
		FROM prospects
		WHERE deleted_at IS NULL`
	args := []interface{}{}
	argIdx := 1

	if filter.ScopeUserID != nil {
		query += fmt.Sprintf(" AND assigned_to = $%d", argIdx)
		args = append(args, *filter.ScopeUserID)
		argIdx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Segment != nil {
		query += fmt.Sprintf(" AND segment = $%d", argIdx)
		args = append(args, *filter.Segment)
	}
	query += " ORDER BY created_at, id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p ProspectRow
		if err := rows.Scan(
			&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Age, &p.PostalCode, &p.City,
			&p.BudgetMonthly, &p.HealthStatus, &p.UrgencyLevel, &p.Score, &p.Segment, &p.Status,
			&p.Source, &p.AssignedTo, &p.CreatedAt,
		); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}
