package repository

import (
	"context"
	"errors"
	"time"

	"premunia_crm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type StatusChange struct {
	ID         uuid.UUID
	ProspectID uuid.UUID
	FromStatus string
	ToStatus   string
	ChangedBy  *uuid.UUID
	Reason     *string
	CreatedAt  time.Time
}

type ChangeStatusParams struct {
	ProspectID uuid.UUID
	FromStatus string
	ToStatus   string
	ChangedBy  *uuid.UUID
	Reason     *string
}

// ChangeStatus updates the status and appends the history row in one transaction.
// The update is guarded by the expected current status so concurrent changes fail.
func (r *Repository) ChangeStatus(ctx context.Context, params ChangeStatusParams) (Prospect, error) {
	var updated Prospect
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		updated, err = ChangeStatusTx(ctx, tx, params)
		return err
	})
	return updated, err
}

// ChangeStatusTx is ChangeStatus inside a caller-owned transaction.
func ChangeStatusTx(ctx context.Context, q db.DBTX, params ChangeStatusParams) (Prospect, error) {
	p, err := scanProspect(q.QueryRow(ctx, `
		UPDATE prospects SET status = $3, last_contact = CASE WHEN $3 = 'contacted' THEN now() ELSE last_contact END, updated_at = now()
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
		RETURNING `+prospectColumns,
		params.ProspectID, params.FromStatus, params.ToStatus,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Prospect{}, ErrNotFound
	}
	if err != nil {
		return Prospect{}, err
	}

	if params.FromStatus == params.ToStatus {
		return p, nil
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO prospect_status_history (prospect_id, from_status, to_status, changed_by, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, params.ProspectID, params.FromStatus, params.ToStatus, params.ChangedBy, params.Reason); err != nil {
		return Prospect{}, err
	}
	return p, nil
}

// GetForUpdate locks a live prospect row inside a transaction.
func GetForUpdate(ctx context.Context, q db.DBTX, id uuid.UUID) (Prospect, error) {
	p, err := scanProspect(q.QueryRow(ctx, `
		SELECT `+prospectColumns+`
		FROM prospects WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Prospect{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) ListStatusHistory(ctx context.Context, prospectID uuid.UUID) ([]StatusChange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, prospect_id, from_status, to_status, changed_by, reason, created_at
		FROM prospect_status_history
		WHERE prospect_id = $1
		ORDER BY created_at DESC
	`, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]StatusChange, 0)
	for rows.Next() {
		var h StatusChange
		if err := rows.Scan(&h.ID, &h.ProspectID, &h.FromStatus, &h.ToStatus, &h.ChangedBy, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}
