package jsonfile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/msomdec/ebookshelf/internal/domain"
)

// UserRepository implements domain.UserRepository on top of a Store.
type UserRepository struct {
	store *Store
}

// NewUserRepository creates a new file-backed UserRepository.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

// Create inserts user. The existence check and the write happen under the
// same exclusive lock, so of two racing signups for one email exactly one wins.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	err := r.store.update(func(users map[string]record) (bool, error) {
		if _, ok := users[user.Email]; ok {
			return false, domain.ErrDuplicateEmail
		}
		users[user.Email] = record{
			Username:  user.Username,
			Password:  user.PasswordHash,
			CreatedAt: now.Format(time.RFC3339),
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	user.CreatedAt = now
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users, err := r.store.snapshot()
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	rec, ok := users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return toUser(email, rec), nil
}

// FindByLogin looks the identifier up as an email key, then as a username.
// Usernames are not unique; the first match in email order wins.
func (r *UserRepository) FindByLogin(ctx context.Context, identifier string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users, err := r.store.snapshot()
	if err != nil {
		return nil, fmt.Errorf("query user by login: %w", err)
	}
	if rec, ok := users[identifier]; ok {
		return toUser(identifier, rec), nil
	}

	emails := make([]string, 0, len(users))
	for email := range users {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	for _, email := range emails {
		if users[email].Username == identifier {
			return toUser(email, users[email]), nil
		}
	}
	return nil, domain.ErrNotFound
}

func toUser(email string, rec record) *domain.User {
	u := &domain.User{
		Email:        email,
		Username:     rec.Username,
		PasswordHash: rec.Password,
	}
	if t, err := time.Parse(time.RFC3339, rec.CreatedAt); err == nil {
		u.CreatedAt = t
	}
	return u
}
