package repository

import (
	"errors"
	"fmt"
)

// Sentinel errors for repository operations.
var (
	// ErrStorage matches every StorageError via errors.Is.
	ErrStorage = errors.New("storage error")

	// ErrHandleReleased is returned when a released Handle is used.
	ErrHandleReleased = errors.New("repository handle released")
)

// Operation names used in StorageError.
const (
	OpCreateUser = "create_user"
	OpFindUser   = "find_user"
	OpListUsers  = "list_users"
)

// StorageError reports a backend failure. A missing user is not a StorageError.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

// NewStorageError wraps err as a StorageError. It returns nil for a nil err.
func NewStorageError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Backend: backend, Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
