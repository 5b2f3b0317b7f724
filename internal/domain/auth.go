// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates that the requested record does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken indicates that another user already registered the email.
	ErrEmailTaken = errors.New("email already registered")
)

// User represents a registered user in the system.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Identity returns the token-facing view of the user.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username, Email: u.Email}
}

// UserRepository defines the port for user persistence operations.
// GetByEmail and GetByID return ErrNotFound when no user matches, and Create
// returns an error wrapping ErrEmailTaken when the email is already in use.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, username, email, passwordHash string) (*User, error)
}

// NormalizeEmail returns the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
