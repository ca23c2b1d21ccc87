package repository

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/userd/userd/internal/model"
)

// sharedRepo is the state shared by every Handle cloned from the same root.
type sharedRepo struct {
	repo      UserRepository
	refs      atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

// Handle is a reference-counted reference to one UserRepository.
//
// Handles are cheap to clone and are meant to be given to each long-lived
// consumer (HTTP handlers, workers). The backend is closed once, after the
// last Handle is released. Handle adds no locking of its own; the backend
// synchronizes its own state.
type Handle struct {
	shared   *sharedRepo
	released atomic.Bool
}

var (
	_ UserRepository = (*Handle)(nil)
	_ Epocher        = (*Handle)(nil)
)

// NewHandle wraps repo and returns the first reference to it.
func NewHandle(repo UserRepository) *Handle {
	s := &sharedRepo{repo: repo}
	s.refs.Store(1)
	return &Handle{shared: s}
}

// Clone returns a new reference to the same backend.
// Cloning a released handle returns a handle that is already released.
//
// The count never rises from zero, so a Clone racing with the final
// Release either keeps the backend open or gets a released handle.
func (h *Handle) Clone() *Handle {
	for !h.released.Load() {
		n := h.shared.refs.Load()
		if n <= 0 {
			break
		}
		if h.shared.refs.CompareAndSwap(n, n+1) {
			return &Handle{shared: h.shared}
		}
	}
	c := &Handle{shared: h.shared}
	c.released.Store(true)
	return c
}

// Release drops this reference. Releasing the last reference closes the
// backend if it implements io.Closer. Calling Release twice on the same
// handle is a no-op; the error of the final close is returned to whichever
// caller released the last reference.
func (h *Handle) Release() error {
	if !h.released.CompareAndSwap(false, true) {
		return nil
	}
	if h.shared.refs.Add(-1) > 0 {
		return nil
	}
	h.shared.closeOnce.Do(func() {
		if c, ok := h.shared.repo.(io.Closer); ok {
			h.shared.closeErr = c.Close()
		}
	})
	return h.shared.closeErr
}

// Epoch forwards to the backend; see Epocher.
func (h *Handle) Epoch() string {
	return EpochOf(h.shared.repo)
}

// Refs returns the number of live references.
func (h *Handle) Refs() int64 {
	return h.shared.refs.Load()
}

// Ping forwards to the backend if it supports connectivity checks.
func (h *Handle) Ping(ctx context.Context) error {
	if h.released.Load() {
		return NewStorageError("handle", "ping", ErrHandleReleased)
	}
	if p, ok := h.shared.repo.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// CreateUser forwards to the backend.
func (h *Handle) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	if h.released.Load() {
		return nil, NewStorageError("handle", OpCreateUser, ErrHandleReleased)
	}
	return h.shared.repo.CreateUser(ctx, req)
}

// FindUser forwards to the backend.
func (h *Handle) FindUser(ctx context.Context, id uint64) (*model.User, error) {
	if h.released.Load() {
		return nil, NewStorageError("handle", OpFindUser, ErrHandleReleased)
	}
	return h.shared.repo.FindUser(ctx, id)
}

// ListUsers forwards to the backend.
func (h *Handle) ListUsers(ctx context.Context) ([]model.User, error) {
	if h.released.Load() {
		return nil, NewStorageError("handle", OpListUsers, ErrHandleReleased)
	}
	return h.shared.repo.ListUsers(ctx)
}
