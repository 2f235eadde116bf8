package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/lounge/internal/domain"
	"github.com/vedran77/lounge/internal/repository"
)

const userColumns = `id, email, username, display_name, password_hash, is_online, status, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, username, display_name, password_hash, is_online, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.Username, user.DisplayName,
		user.PasswordHash, user.IsOnline, user.Status, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", repository.ErrDuplicate, err)
	}
	return err
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
}

func (r *UserRepo) UpdatePresence(ctx context.Context, id uuid.UUID, isOnline bool, status *string) (*domain.User, error) {
	query := `
		UPDATE users
		SET is_online = $2, status = COALESCE($3, status), updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return r.scanUser(r.pool.QueryRow(ctx, query, id, isOnline, status))
}

func (r *UserRepo) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.PasswordHash,
		&u.IsOnline, &u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
