package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/userd/userd/internal/model"
)

const (
	userKeyPrefix = "user:"

	// DefaultUserTTL is the TTL for cached users.
	DefaultUserTTL = 10 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// userKey namespaces id under scope. An empty scope is used by stores whose
// ids survive restarts.
func userKey(scope string, id uint64) string {
	if scope == "" {
		return userKeyPrefix + strconv.FormatUint(id, 10)
	}
	return userKeyPrefix + scope + ":" + strconv.FormatUint(id, 10)
}

// GetUser retrieves a user from cache by scope and id.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetUser(ctx context.Context, scope string, id uint64) (*model.User, error) {
	key := userKey(scope, id)
	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	cached := &model.CachedUser{
		ID:        result["id"],
		Name:      result["name"],
		Email:     result["email"],
		CreatedAt: result["created_at"],
	}

	user, err := cached.ToUser()
	if err != nil {
		// Corrupt entry: drop it and fall back to storage.
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}

	return user, nil
}

// SetUser stores a user in cache. Users never change after creation, so an
// entry can only go stale by expiring.
func (c *Cache) SetUser(ctx context.Context, scope string, user *model.User) error {
	key := userKey(scope, user.ID)
	cached := user.ToCachedUser()

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"id":         cached.ID,
		"name":       cached.Name,
		"email":      cached.Email,
		"created_at": cached.CreatedAt,
	})
	pipe.Expire(ctx, key, c.userTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache user: %w", err)
	}

	return nil
}
