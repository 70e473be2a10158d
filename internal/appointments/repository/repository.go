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

var ErrNotFound = errors.New("appointment not found")

// Appointment represents the appointment database model
type Appointment struct {
	ID              uuid.UUID
	Title           string
	Description     *string
	ProspectID      *uuid.UUID
	AssignedTo      uuid.UUID
	CreatedBy       *uuid.UUID
	Status          string
	ScheduledAt     time.Time
	DurationMinutes int
	Location        *string
	MeetingType     string
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndsAt is the scheduled end of the appointment.
func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Repository provides database operations for appointments
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new appointments repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appointmentColumns = `id, title, description, prospect_id, assigned_to, created_by, status, scheduled_at,
	duration_minutes, location, meeting_type, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.ProspectID, &a.AssignedTo, &a.CreatedBy, &a.Status,
		&a.ScheduledAt, &a.DurationMinutes, &a.Location, &a.MeetingType, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

type CreateAppointmentParams struct {
	Title           string
	Description     *string
	ProspectID      *uuid.UUID
	AssignedTo      uuid.UUID
	CreatedBy       uuid.UUID
	ScheduledAt     time.Time
	DurationMinutes int
	Location        *string
	MeetingType     string
	Notes           *string
}

// Create inserts a new appointment with status planned
func (r *Repository) Create(ctx context.Context, params CreateAppointmentParams) (Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `
		INSERT INTO appointments (title, description, prospect_id, assigned_to, created_by, scheduled_at,
			duration_minutes, location, meeting_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+appointmentColumns,
		params.Title, params.Description, params.ProspectID, params.AssignedTo, params.CreatedBy,
		params.ScheduledAt, params.DurationMinutes, params.Location, params.MeetingType, params.Notes,
	))
	if err != nil {
		return Appointment{}, fmt.Errorf("failed to create appointment: %w", err)
	}
	return a, nil
}

// GetByID retrieves an appointment by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

type UpdateAppointmentParams struct {
	Title           *string
	Description     *string
	ProspectID      *uuid.UUID
	ScheduledAt     *time.Time
	DurationMinutes *int
	Location        *string
	MeetingType     *string
	Notes           *string
}

// Update applies the non-nil fields
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateAppointmentParams) (Appointment, error) {
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
		{params.ScheduledAt != nil, "scheduled_at", params.ScheduledAt},
		{params.DurationMinutes != nil, "duration_minutes", params.DurationMinutes},
		{params.Location != nil, "location", params.Location},
		{params.MeetingType != nil, "meeting_type", params.MeetingType},
		{params.Notes != nil, "notes", params.Notes},
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
	query := fmt.Sprintf(`UPDATE appointments SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argIdx, appointmentColumns)

	a, err := scanAppointment(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("failed to update appointment: %w", err)
	}
	return a, nil
}

// UpdateStatus updates the status of an appointment
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("failed to update appointment status: %w", err)
	}
	return a, nil
}

// Delete removes an appointment
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListParams contains parameters for listing appointments
type ListParams struct {
	ScopeUserID *uuid.UUID
	AssignedTo  *uuid.UUID
	ProspectID  *uuid.UUID
	Status      *string
	MeetingType *string
	From        *time.Time
	To          *time.Time
	Search      string
	SortBy      string
	SortOrder   string
	Offset      int
	Limit       int
}

// List retrieves appointments with optional filtering
func (r *Repository) List(ctx context.Context, params ListParams) ([]Appointment, int, error) {
	baseQuery, args, argIndex := buildAppointmentListWhere(params)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	orderBy, ok := sortColumns[params.SortBy]
	if !ok {
		orderBy = "scheduled_at"
	}
	sortDir := "ASC"
	if params.SortOrder == "desc" {
		sortDir = "DESC"
	}

	selectQuery := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		appointmentColumns, baseQuery, orderBy, sortDir, argIndex, argIndex+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Appointment, error) {
		return scanAppointment(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan appointments: %w", err)
	}
	return items, total, nil
}

var sortColumns = map[string]string{
	"title":       "title",
	"status":      "status",
	"scheduledAt": "scheduled_at",
	"createdAt":   "created_at",
}

func buildAppointmentListWhere(params ListParams) (string, []interface{}, int) {
	baseQuery := `FROM appointments WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	addFilter(&baseQuery, &args, &argIndex, params.ScopeUserID != nil, " AND assigned_to = $%d", derefUUID(params.ScopeUserID))
	addFilter(&baseQuery, &args, &argIndex, params.AssignedTo != nil, " AND assigned_to = $%d", derefUUID(params.AssignedTo))
	addFilter(&baseQuery, &args, &argIndex, params.ProspectID != nil, " AND prospect_id = $%d", derefUUID(params.ProspectID))
	addFilter(&baseQuery, &args, &argIndex, params.Status != nil, " AND status = $%d", derefString(params.Status))
	addFilter(&baseQuery, &args, &argIndex, params.MeetingType != nil, " AND meeting_type = $%d", derefString(params.MeetingType))
	addFilter(&baseQuery, &args, &argIndex, params.From != nil, " AND scheduled_at >= $%d", derefTime(params.From))
	addFilter(&baseQuery, &args, &argIndex, params.To != nil, " AND scheduled_at <= $%d", derefTime(params.To))
	addFilter(&baseQuery, &args, &argIndex, params.Search != "", " AND (title ILIKE $%[1]d OR location ILIKE $%[1]d)", "%"+params.Search+"%")

	return baseQuery, args, argIndex
}

// Upcoming returns planned or confirmed appointments starting after now, soonest first.
func (r *Repository) Upcoming(ctx context.Context, scopeUserID *uuid.UUID, now time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('planned', 'confirmed') AND scheduled_at > $1
			AND ($2::uuid IS NULL OR assigned_to = $2)
		ORDER BY scheduled_at ASC
		LIMIT $3`, now, scopeUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Appointment, error) {
		return scanAppointment(row)
	})
}

// ListOverlapping returns the assignee's active appointments that intersect
// [start, end). An appointment overlaps if it starts before the window ends
// and ends after the window starts.
func (r *Repository) ListOverlapping(ctx context.Context, assignedTo uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE assigned_to = $1
			AND status IN ('planned', 'confirmed')
			AND scheduled_at < $3
			AND scheduled_at + make_interval(mins => duration_minutes) > $2
		ORDER BY scheduled_at ASC`, assignedTo, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments for date range: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Appointment, error) {
		return scanAppointment(row)
	})
}

// ProspectName returns "first last" for a live prospect, or "" when unknown.
func (r *Repository) ProspectName(ctx context.Context, prospectID uuid.UUID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `
		SELECT first_name || ' ' || last_name FROM prospects WHERE id = $1 AND deleted_at IS NULL
	`, prospectID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
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
