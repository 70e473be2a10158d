package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	prospectrepo "premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("client not found")
	// ErrAlreadyConverted means the prospect already has a client record.
	ErrAlreadyConverted = errors.New("prospect already converted")
)

type Client struct {
	ID             uuid.UUID
	ProspectID     uuid.UUID
	FirstName      string
	LastName       string
	Email          *string
	Phone          *string
	ContractNumber string
	Product        string
	Insurer        string
	MonthlyPremium float64
	StartDate      time.Time
	AssignedTo     *uuid.UUID
	Status         string
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, prospect_id, first_name, last_name, email, phone, contract_number, product, insurer,
	monthly_premium::float8, start_date, assigned_to, status, cancelled_at, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.ProspectID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.ContractNumber,
		&c.Product, &c.Insurer, &c.MonthlyPremium, &c.StartDate, &c.AssignedTo, &c.Status, &c.CancelledAt,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ContractNumber formats PRM-YYYY-NNNNN.
func ContractNumber(year int, seq int64) string {
	return fmt.Sprintf("PRM-%d-%05d", year, seq)
}

// ContractTerms are the signed policy details.
type ContractTerms struct {
	Product        string
	Insurer        string
	MonthlyPremium float64
	StartDate      time.Time
}

// ConvertParams drives a conversion. Check runs on the locked prospect before
// anything is written and can veto the conversion.
type ConvertParams struct {
	ProspectID uuid.UUID
	ChangedBy  uuid.UUID
	Terms      ContractTerms
	Check      func(p prospectrepo.Prospect) error
}

// Convert turns a prospect into a client in one transaction: it locks the
// prospect, allocates a contract number, inserts the client and moves the
// prospect to closed_won with a history row.
func (r *Repository) Convert(ctx context.Context, params ConvertParams) (Client, prospectrepo.Prospect, error) {
	var (
		client   Client
		prospect prospectrepo.Prospect
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		p, err := prospectrepo.GetForUpdate(ctx, tx, params.ProspectID)
		if err != nil {
			return err
		}
		if params.Check != nil {
			if err := params.Check(p); err != nil {
				return err
			}
		}

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE prospect_id = $1)`, p.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrAlreadyConverted
		}

		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('client_contract_seq')`).Scan(&seq); err != nil {
			return err
		}

		client, err = scanClient(tx.QueryRow(ctx, `
			INSERT INTO clients (prospect_id, first_name, last_name, email, phone, contract_number,
				product, insurer, monthly_premium, start_date, assigned_to)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING `+clientColumns,
			p.ID, p.FirstName, p.LastName, p.Email, p.Phone, ContractNumber(params.Terms.StartDate.Year(), seq),
			params.Terms.Product, params.Terms.Insurer, params.Terms.MonthlyPremium, params.Terms.StartDate, p.AssignedTo,
		))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrAlreadyConverted
			}
			return err
		}

		changedBy := params.ChangedBy
		reason := "converted to client " + client.ContractNumber
		prospect, err = prospectrepo.ChangeStatusTx(ctx, tx, prospectrepo.ChangeStatusParams{
			ProspectID: p.ID,
			FromStatus: p.Status,
			ToStatus:   "closed_won",
			ChangedBy:  &changedBy,
			Reason:     &reason,
		})
		return err
	})
	return client, prospect, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

type UpdateClientParams struct {
	Email          *string
	Phone          *string
	Product        *string
	Insurer        *string
	MonthlyPremium *float64
	AssignedTo     *uuid.UUID
}

// Update edits an active client.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateClientParams) (Client, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.Email != nil, "email", params.Email},
		{params.Phone != nil, "phone", params.Phone},
		{params.Product != nil, "product", params.Product},
		{params.Insurer != nil, "insurer", params.Insurer},
		{params.MonthlyPremium != nil, "monthly_premium", params.MonthlyPremium},
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
	query := fmt.Sprintf(`UPDATE clients SET %s WHERE id = $%d AND status = 'active' RETURNING %s`,
		strings.Join(setClauses, ", "), argIdx, clientColumns)

	c, err := scanClient(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

// Cancel ends an active contract.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `
		UPDATE clients SET status = 'cancelled', cancelled_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'
		RETURNING `+clientColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

type ListParams struct {
	ScopeUserID *uuid.UUID
	Status      *string
	Search      string
	Offset      int
	Limit       int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Client, int, error) {
	baseQuery := "FROM clients WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	addFilter(&baseQuery, &args, &argIdx, params.ScopeUserID != nil, " AND assigned_to = $%d", derefUUID(params.ScopeUserID))
	addFilter(&baseQuery, &args, &argIdx, params.Status != nil, " AND status = $%d", derefString(params.Status))
	addFilter(&baseQuery, &args, &argIdx, params.Search != "",
		" AND (first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR contract_number ILIKE $%[1]d)", "%"+params.Search+"%")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, clientColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Client, error) {
		return scanClient(row)
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
