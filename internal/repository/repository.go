// Package repository defines the storage contract for users.
// Backends live in subpackages (memory, postgres, sqlite).
package repository

import (
	"context"

	"github.com/userd/userd/internal/model"
)

// UserRepository is implemented by every storage backend.
//
// Implementations must be safe for concurrent use. CreateUser is the only
// mutating operation; it must never return a User that was not stored.
// Every backend rejects a blank name with a StorageError wrapping
// model.ErrNameRequired.
type UserRepository interface {
	// CreateUser assigns a fresh id and creation time, stores the user and
	// returns the stored value.
	CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error)

	// FindUser returns the user with the given id, or nil and no error
	// when no such user exists.
	FindUser(ctx context.Context, id uint64) (*model.User, error)

	// ListUsers returns a consistent snapshot of all users in ascending id order.
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Epocher is implemented by backends whose ids are unique only for the
// lifetime of one instance. Epoch identifies that instance, so anything
// keyed by id outside the process (caches, event streams) can tell two
// runs apart.
type Epocher interface {
	Epoch() string
}

// EpochOf returns repo's epoch, or "" for backends with durable ids.
func EpochOf(repo UserRepository) string {
	if e, ok := repo.(Epocher); ok {
		return e.Epoch()
	}
	return ""
}
