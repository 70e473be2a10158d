package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RowError records why one CSV line was rejected. Row is 1-based and counts
// the header line.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// DataImport is the audit record of one uploaded file.
type DataImport struct {
	ID           uuid.UUID
	Filename     string
	TotalRows    int
	ImportedRows int
	FailedRows   int
	Errors       []RowError
	CreatedBy    *uuid.UUID
	CreatedAt    time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const dataImportColumns = "id, filename, total_rows, imported_rows, failed_rows, errors, created_by, created_at"

func scanDataImport(row pgx.Row) (DataImport, error) {
	var (
		d   DataImport
		raw []byte
	)
	if err := row.Scan(&d.ID, &d.Filename, &d.TotalRows, &d.ImportedRows, &d.FailedRows, &raw, &d.CreatedBy, &d.CreatedAt); err != nil {
		return DataImport{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &d.Errors); err != nil {
			return DataImport{}, fmt.Errorf("decode import errors: %w", err)
		}
	}
	return d, nil
}

func (r *Repository) Create(ctx context.Context, d DataImport) (DataImport, error) {
	errs := d.Errors
	if errs == nil {
		errs = []RowError{}
	}
	raw, err := json.Marshal(errs)
	if err != nil {
		return DataImport{}, err
	}

	query := `
		INSERT INTO data_imports (filename, total_rows, imported_rows, failed_rows, errors, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + dataImportColumns
	return scanDataImport(r.pool.QueryRow(ctx, query, d.Filename, d.TotalRows, d.ImportedRows, d.FailedRows, raw, d.CreatedBy))
}

type ListParams struct {
	CreatedBy *uuid.UUID
	Offset    int
	Limit     int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]DataImport, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1
	if params.CreatedBy != nil {
		where += fmt.Sprintf(" AND created_by = $%d", argIdx)
		args = append(args, *params.CreatedBy)
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM data_imports "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM data_imports
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, dataImportColumns, where, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DataImport, error) {
		return scanDataImport(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
