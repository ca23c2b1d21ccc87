// Package sqlite provides a SQLite-backed UserRepository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/userd/userd/internal/model"
	"github.com/userd/userd/internal/repository"
)

// BackendName identifies this backend in errors and logs.
const BackendName = "sqlite"

// AUTOINCREMENT keeps ids from being reused even if the highest row is removed.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  name       TEXT NOT NULL CHECK (name <> ''),
  email      TEXT NOT NULL,
  created_at TEXT NOT NULL
);
`

var _ repository.UserRepository = (*Store)(nil)

// Store stores users in a SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" for a private in-memory database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writers anyway; a single connection also keeps a
	// ":memory:" database alive and shared across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the users table. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a user and returns it with the id SQLite assigned.
func (s *Store) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpCreateUser, err)
	}

	createdAt := s.now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, created_at) VALUES (?, ?, ?)`,
		req.Name, req.Email, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpCreateUser, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpCreateUser, err)
	}

	return &model.User{
		ID:        uint64(id),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: createdAt,
	}, nil
}

// FindUser retrieves a user by id. It returns nil when no row matches.
func (s *Store) FindUser(ctx context.Context, id uint64) (*model.User, error) {
	if id > math.MaxInt64 {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, int64(id))

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, repository.NewStorageError(BackendName, repository.OpFindUser, err)
	}
	return user, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM users ORDER BY id`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		user      model.User
		id        int64
		createdAt string
	)
	if err := row.Scan(&id, &user.Name, &user.Email, &createdAt); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}

	user.ID = uint64(id)
	user.CreatedAt = t
	return &user, nil
}
