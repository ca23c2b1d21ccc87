// Package model defines domain entities for the application.
package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Validation errors.
var (
	ErrNameRequired = errors.New("name is required")
)

// User is a stored user record. It never changes after creation.
type User struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserRequest carries the caller-supplied fields of a new user.
// The store assigns the identifier and creation time.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Validate checks the request before it reaches a store.
// Email is opaque and is not checked.
func (r CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrNameRequired
	}
	return nil
}

// CachedUser is the flattened representation stored in a Redis hash.
type CachedUser struct {
	ID        string
	Name      string
	Email     string
	CreatedAt string
}

// ToCachedUser converts a User to its cache representation.
func (u *User) ToCachedUser() *CachedUser {
	return &CachedUser{
		ID:        strconv.FormatUint(u.ID, 10),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ToUser parses a cache entry back into a User.
func (c *CachedUser) ToUser() (*User, error) {
	id, err := strconv.ParseUint(c.ID, 10, 64)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:        id,
		Name:      c.Name,
		Email:     c.Email,
		CreatedAt: createdAt,
	}, nil
}
