// Package memory provides an in-process UserRepository.
//
// State is lost when the process exits. All methods are safe for concurrent use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/userd/userd/internal/model"
	"github.com/userd/userd/internal/repository"
)

// BackendName identifies this backend in errors and logs.
const BackendName = "memory"

var (
	_ repository.UserRepository = (*Store)(nil)
	_ repository.Epocher        = (*Store)(nil)
)

// Store keeps users in a map guarded by a single RWMutex.
//
// Identifier allocation and insertion share one write critical section, so
// an id is never visible to readers before its user is stored, and ids are
// handed out in a total order.
type Store struct {
	mu     sync.RWMutex
	users  map[uint64]model.User
	order  []uint64
	nextID uint64

	epoch string
	now   func() time.Time
}

type options struct {
	now   func() time.Time
	seeds []model.CreateUserRequest
}

// Option configures a Store.
type Option func(*options)

// WithClock overrides the creation-time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithSeed inserts fixture users at construction time, in order, before the
// store is reachable by any other goroutine.
func WithSeed(reqs ...model.CreateUserRequest) Option {
	return func(o *options) {
		o.seeds = append(o.seeds, reqs...)
	}
}

// New creates a Store. The first id issued is 1. Seeds with a blank name
// are skipped.
func New(opts ...Option) *Store {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		users:  make(map[uint64]model.User, len(o.seeds)),
		nextID: 1,
		epoch:  ulid.Make().String(),
		now:    o.now,
	}
	for _, req := range o.seeds {
		if req.Validate() != nil {
			continue
		}
		s.insert(req)
	}

	return s
}

// CreateUser allocates the next id and stores the user.
// A rejected request consumes no id.
func (s *Store) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpCreateUser, err)
	}
	if err := req.Validate(); err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpCreateUser, err)
	}

	s.mu.Lock()
	user := s.insert(req)
	s.mu.Unlock()

	return &user, nil
}

// FindUser returns a copy of the stored user, or nil if id was never issued.
func (s *Store) FindUser(ctx context.Context, id uint64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpFindUser, err)
	}

	s.mu.RLock()
	user, ok := s.users[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return &user, nil
}

// ListUsers returns copies of all users in insertion (ascending id) order.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.NewStorageError(BackendName, repository.OpListUsers, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.users[id])
	}
	return users, nil
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Epoch identifies this store instance. Ids restart at 1 in every
// instance, so external keys built from ids must include it.
func (s *Store) Epoch() string {
	return s.epoch
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op; it lets the store be released through a Handle.
func (s *Store) Close() error {
	return nil
}

// insert must be called with mu held for writing, or before the store is shared.
func (s *Store) insert(req model.CreateUserRequest) model.User {
	user := model.User{
		ID:        s.nextID,
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: s.now().UTC(),
	}
	s.nextID++
	s.users[user.ID] = user
	s.order = append(s.order, user.ID)
	return user
}
