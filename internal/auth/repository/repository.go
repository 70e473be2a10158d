package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")
var ErrEmailTaken = errors.New("email already in use")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	IsActive     bool
	LastSignInAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const userColumns = "id, email, password_hash, first_name, last_name, role, is_active, last_sign_in_at, created_at, updated_at"

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.LastSignInAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
}

func (r *Repository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		params.Email, params.PasswordHash, params.FirstName, params.LastName, params.Role,
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return User{}, ErrEmailTaken
	}
	return user, err
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

func (r *Repository) UpdateNames(ctx context.Context, userID uuid.UUID, firstName, lastName *string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, firstName, lastName,
	))
}

func (r *Repository) SetRole(ctx context.Context, userID uuid.UUID, role string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, role,
	))
}

func (r *Repository) SetActive(ctx context.Context, userID uuid.UUID, active bool) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET is_active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, active,
	))
}

func (r *Repository) TouchSignIn(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_sign_in_at = now() WHERE id = $1`, userID)
	return err
}

type ListParams struct {
	Role   *string
	Active *bool
	Search string
}

func (r *Repository) ListUsers(ctx context.Context, params ListParams) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	args := []interface{}{}
	argIdx := 1
	if params.Role != nil {
		query += fmt.Sprintf(" AND role = $%d", argIdx)
		args = append(args, *params.Role)
		argIdx++
	}
	if params.Active != nil {
		query += fmt.Sprintf(" AND is_active = $%d", argIdx)
		args = append(args, *params.Active)
		argIdx++
	}
	if params.Search != "" {
		query += fmt.Sprintf(" AND (email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", argIdx, argIdx, argIdx)
		args = append(args, "%"+params.Search+"%")
	}
	query += " ORDER BY last_name, first_name, email"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return scanUser(row)
	})
}

func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *Repository) CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	return err
}

// ConsumeRefreshToken revokes a live token and returns its owner. A token can
// be consumed once; concurrent refreshes with the same token see ErrNotFound.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, time.Time, error) {
	var userID uuid.UUID
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL
		RETURNING user_id, expires_at
	`, tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.UUID{}, time.Time{}, ErrNotFound
	}
	return userID, expiresAt, err
}

func (r *Repository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash)
	return err
}

func (r *Repository) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	return err
}
