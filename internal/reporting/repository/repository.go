// Package repository holds the read-only aggregate queries behind the reports.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

// CountProspectsCreated counts live prospects created in [from, to).
func (r *Repository) CountProspectsCreated(ctx context.Context, scope *uuid.UUID, from, to time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM prospects
		WHERE deleted_at IS NULL AND created_at >= $2 AND created_at < $3
			AND ($1::uuid IS NULL OR assigned_to = $1)`, scope, from, to)
}

func (r *Repository) CountClientsCreated(ctx context.Context, scope *uuid.UUID, from, to time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM clients
		WHERE created_at >= $2 AND created_at < $3
			AND ($1::uuid IS NULL OR assigned_to = $1)`, scope, from, to)
}

// CountUpcomingAppointments counts planned or confirmed appointments after now.
func (r *Repository) CountUpcomingAppointments(ctx context.Context, scope *uuid.UUID, now time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE status IN ('planned', 'confirmed') AND scheduled_at > $2
			AND ($1::uuid IS NULL OR assigned_to = $1)`, scope, now)
}

// CountOverdueTasks counts pending tasks past their due date.
func (r *Repository) CountOverdueTasks(ctx context.Context, scope *uuid.UUID, now time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE status = 'pending' AND due_date < $2
			AND ($1::uuid IS NULL OR assigned_to = $1)`, scope, now)
}

func (r *Repository) CountOpportunitiesCreated(ctx context.Context, scope *uuid.UUID, from, to time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM opportunities
		WHERE created_at >= $2 AND created_at < $3
			AND ($1::uuid IS NULL OR assigned_to = $1)`, scope, from, to)
}

// WonRevenue sums won deals closed in [from, to) and counts them.
func (r *Repository) WonRevenue(ctx context.Context, scope *uuid.UUID, from, to time.Time) (float64, int, error) {
	var (
		revenue float64
		won     int
	)
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(value), 0)::float8, COUNT(*) FROM opportunities
		WHERE stage = 'closed_won' AND closed_at >= $2 AND closed_at < $3
			AND ($1::uuid IS NULL OR assigned_to = $1)`, scope, from, to).Scan(&revenue, &won)
	return revenue, won, err
}

// PipelineValue is the probability-weighted value of open opportunities.
func (r *Repository) PipelineValue(ctx context.Context, scope *uuid.UUID) (float64, error) {
	var value float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(value * probability / 100.0), 0)::float8 FROM opportunities
		WHERE stage NOT IN ('closed_won', 'closed_lost')
			AND ($1::uuid IS NULL OR assigned_to = $1)`, scope).Scan(&value)
	return value, err
}

type SegmentStat struct {
	Segment   string
	Count     int
	AvgBudget float64
	AvgScore  float64
}

func (r *Repository) SegmentBreakdown(ctx context.Context, scope *uuid.UUID) ([]SegmentStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT segment, COUNT(*), COALESCE(AVG(budget_monthly), 0)::float8, COALESCE(AVG(score), 0)::float8
		FROM prospects
		WHERE deleted_at IS NULL AND ($1::uuid IS NULL OR assigned_to = $1)
		GROUP BY segment
		ORDER BY segment`, scope)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SegmentStat, error) {
		var s SegmentStat
		err := row.Scan(&s.Segment, &s.Count, &s.AvgBudget, &s.AvgScore)
		return s, err
	})
}

type MemberStat struct {
	UserID    uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Prospects int
	WonDeals  int
	Revenue   float64
}

// TeamPerformance reports every active commercial user, including those with
// no activity yet.
func (r *Repository) TeamPerformance(ctx context.Context) ([]MemberStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.first_name, u.last_name, u.email,
			(SELECT COUNT(*) FROM prospects p WHERE p.assigned_to = u.id AND p.deleted_at IS NULL),
			(SELECT COUNT(*) FROM opportunities o WHERE o.assigned_to = u.id AND o.stage = 'closed_won'),
			(SELECT COALESCE(SUM(o.value), 0)::float8 FROM opportunities o WHERE o.assigned_to = u.id AND o.stage = 'closed_won')
		FROM users u
		WHERE u.role = 'commercial' AND u.is_active
		ORDER BY 7 DESC, u.last_name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MemberStat, error) {
		var m MemberStat
		err := row.Scan(&m.UserID, &m.FirstName, &m.LastName, &m.Email, &m.Prospects, &m.WonDeals, &m.Revenue)
		return m, err
	})
}
