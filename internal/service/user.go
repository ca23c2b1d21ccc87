// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/userd/userd/internal/cache"
	"github.com/userd/userd/internal/events"
	"github.com/userd/userd/internal/metrics"
	"github.com/userd/userd/internal/model"
	"github.com/userd/userd/internal/repository"
)

// Service errors.
var (
	ErrInvalidUser = errors.New("invalid user")
)

// UserCache is the read-through cache used by GetUser. Entries are keyed by
// scope and id; scope is the store epoch, empty for durable backends.
type UserCache interface {
	GetUser(ctx context.Context, scope string, id uint64) (*model.User, error)
	SetUser(ctx context.Context, scope string, user *model.User) error
}

// UserService handles user business logic on top of a repository.
type UserService struct {
	repo    repository.UserRepository
	scope   string
	cache   UserCache
	events  events.Emitter
	metrics metrics.Recorder
	logger  *slog.Logger
}

// UserServiceOption configures optional collaborators.
type UserServiceOption func(*UserService)

// WithCache enables read-through caching of found users.
func WithCache(c UserCache) UserServiceOption {
	return func(s *UserService) {
		s.cache = c
	}
}

// WithEvents publishes a user.created event after each successful create.
func WithEvents(e events.Emitter) UserServiceOption {
	return func(s *UserService) {
		s.events = e
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) UserServiceOption {
	return func(s *UserService) {
		s.metrics = m
	}
}

// NewUserService creates a new UserService.
func NewUserService(repo repository.UserRepository, logger *slog.Logger, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repo:    repo,
		scope:   repository.EpochOf(repo),
		events:  events.Noop{},
		metrics: metrics.NewNoop(),
		logger:  logger.With("component", "service.user"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser validates req and stores a new user.
func (s *UserService) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}

	start := time.Now()
	user, err := s.repo.CreateUser(ctx, req)
	s.metrics.ObserveStorageDuration(repository.OpCreateUser, time.Since(start))
	if err != nil {
		s.metrics.IncStorageError(repository.OpCreateUser)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncUserCreated()
	event := events.NewUserCreated(user)
	event.StoreEpoch = s.scope
	s.events.Emit(event)

	return user, nil
}

// GetUser returns the user with id, or nil if it does not exist.
// Cache failures are logged and fall through to the repository.
func (s *UserService) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	if s.cache != nil {
		cached, err := s.cache.GetUser(ctx, s.scope, id)
		if err == nil {
			s.metrics.IncUserCacheHit()
			s.metrics.IncUserLookup("found")
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("user cache read failed", "user_id", id, "error", err)
		}
		s.metrics.IncUserCacheMiss()
	}

	start := time.Now()
	user, err := s.repo.FindUser(ctx, id)
	s.metrics.ObserveStorageDuration(repository.OpFindUser, time.Since(start))
	if err != nil {
		s.metrics.IncStorageError(repository.OpFindUser)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		s.metrics.IncUserLookup("absent")
		return nil, nil
	}
	s.metrics.IncUserLookup("found")

	if s.cache != nil {
		if err := s.cache.SetUser(ctx, s.scope, user); err != nil {
			s.logger.Warn("user cache write failed", "user_id", id, "error", err)
		}
	}

	return user, nil
}

// ListUsers returns all users in ascending id order.
func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	start := time.Now()
	users, err := s.repo.ListUsers(ctx)
	s.metrics.ObserveStorageDuration(repository.OpListUsers, time.Since(start))
	if err != nil {
		s.metrics.IncStorageError(repository.OpListUsers)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	s.metrics.IncUserListed()

	if users == nil {
		users = []model.User{}
	}
	return users, nil
}
