package domain

import (
	"context"
	"time"
)

// User represents a registered reader. Email is the unique key.
type User struct {
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is the capability derived from a valid session. Every library
// operation takes one; the zero value is never authorised.
type Identity struct {
	Email    string
	Username string
}

// Valid reports whether the identity came from an authenticated session.
func (i Identity) Valid() bool {
	return i.Email != ""
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	// FindByLogin matches the identifier against the email key first and
	// then against usernames. Returns ErrNotFound when nothing matches.
	FindByLogin(ctx context.Context, identifier string) (*User, error)
}
