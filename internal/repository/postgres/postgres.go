// Package postgres provides a PostgreSQL-backed UserRepository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/userd/userd/internal/model"
	"github.com/userd/userd/internal/repository"
)

// BackendName identifies this backend in errors and logs.
const BackendName = "postgres"

// Schema creates the users table. Ids come from a BIGSERIAL sequence, which
// never hands out the same value twice.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL CHECK (name <> ''),
	email      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

var _ repository.UserRepository = (*Repository)(nil)

// Repository stores users in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new Repository with a connection pool.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

// EnsureSchema creates the users table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser inserts a user and returns the row as stored.
func (r *Repository) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpCreateUser, err)
	}

	query := `
		INSERT INTO users (name, email, created_at)
		VALUES ($1, $2, now())
		RETURNING id, name, email, created_at
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, req.Name, req.Email))
	if err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpCreateUser, err)
	}

	return user, nil
}

// FindUser retrieves a user by id. It returns nil when no row matches.
func (r *Repository) FindUser(ctx context.Context, id uint64) (*model.User, error) {
	if id > math.MaxInt64 {
		return nil, nil
	}

	query := `
		SELECT id, name, email, created_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, repository.NewStorageError(BackendName, repository.OpFindUser, err)
	}

	return user, nil
}

// ListUsers returns all users ordered by id. A single statement gives a
// consistent snapshot under READ COMMITTED.
func (r *Repository) ListUsers(ctx context.Context) ([]model.User, error) {
	query := `
		SELECT id, name, email, created_at
		FROM users
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpListUsers, err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, repository.NewStorageError(BackendName, repository.OpListUsers, err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpListUsers, err)
	}

	return users, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user model.User
		id   int64
	)
	if err := row.Scan(&id, &user.Name, &user.Email, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.ID = uint64(id)
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
