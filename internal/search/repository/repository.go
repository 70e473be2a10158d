package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type SearchResult struct {
	ID        uuid.UUID
	Type      string
	Title     string
	Subtitle  string
	Status    string
	CreatedAt time.Time
	Total     int64
}

// entitySearches are unioned into one ranked result set. $1 is the ILIKE
// pattern, $2 the optional assignee scope.
var entitySearches = map[string]string{
	"prospect": `
		SELECT id, 'prospect' AS type, first_name || ' ' || last_name AS title,
			COALESCE(city, '') AS subtitle, status, created_at
		FROM prospects
		WHERE deleted_at IS NULL
			AND ($2::uuid IS NULL OR assigned_to = $2)
			AND (first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1 OR city ILIKE $1)`,
	"client": `
		SELECT id, 'client' AS type, first_name || ' ' || last_name AS title,
			contract_number AS subtitle, status, created_at
		FROM clients
		WHERE ($2::uuid IS NULL OR assigned_to = $2)
			AND (first_name ILIKE $1 OR last_name ILIKE $1 OR contract_number ILIKE $1 OR email ILIKE $1)`,
	"appointment": `
		SELECT id, 'appointment' AS type, title,
			to_char(scheduled_at, 'YYYY-MM-DD HH24:MI') AS subtitle, status, created_at
		FROM appointments
		WHERE ($2::uuid IS NULL OR assigned_to = $2)
			AND (title ILIKE $1 OR location ILIKE $1)`,
	"task": `
		SELECT id, 'task' AS type, title,
			COALESCE(to_char(due_date, 'YYYY-MM-DD'), '') AS subtitle, status, created_at
		FROM tasks
		WHERE ($2::uuid IS NULL OR assigned_to = $2)
			AND (title ILIKE $1 OR description ILIKE $1)`,
}

// searchOrder keeps the UNION deterministic.
var searchOrder = []string{"prospect", "client", "appointment", "task"}

func buildGlobalSearchQuery(types []string) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		if q, ok := entitySearches[t]; ok {
			parts = append(parts, q)
		}
	}
	return fmt.Sprintf(`
		SELECT id, type, title, subtitle, status, created_at, COUNT(*) OVER() AS total
		FROM (%s) results
		ORDER BY created_at DESC
		LIMIT $3`, strings.Join(parts, "\n\t\tUNION ALL"))
}

// GlobalSearch looks up prospects, clients, appointments and tasks by text.
// When types is empty every entity type is searched.
func (r *Repository) GlobalSearch(ctx context.Context, query string, scopeUserID *uuid.UUID, types []string, limit int) ([]SearchResult, error) {
	if len(types) == 0 {
		types = searchOrder
	}

	rows, err := r.pool.Query(ctx, buildGlobalSearchQuery(types), "%"+query+"%", scopeUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]SearchResult, 0)
	for rows.Next() {
		var res SearchResult
		if err := rows.Scan(&res.ID, &res.Type, &res.Title, &res.Subtitle, &res.Status, &res.CreatedAt, &res.Total); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
