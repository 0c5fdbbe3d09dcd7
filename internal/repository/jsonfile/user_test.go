package jsonfile_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/repository/jsonfile"
)

func newTestStore(t *testing.T) *jsonfile.Store {
	t.Helper()
	store, err := jsonfile.Open(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestOpen_CreatesEmptyFile(t *testing.T) {
	store := newTestStore(t)

	b, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read users file: %v", err)
	}
	var users map[string]any
	if err := json.Unmarshal(b, &users); err != nil {
		t.Fatalf("users file is not JSON: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected empty store, got %v", users)
	}
}

func TestOpen_KeepsExistingUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	legacy := `{"old@example.com": {"username": "old", "password": "hash"}}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := jsonfile.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	repo := jsonfile.NewUserRepository(store)

	user, err := repo.GetByEmail(context.Background(), "old@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if user.Username != "old" || user.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUserRepository_Create(t *testing.T) {
	repo := jsonfile.NewUserRepository(newTestStore(t))
	ctx := context.Background()

	user := &domain.User{Email: "test@example.com", Username: "tester", PasswordHash: "hashedpw"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	got, err := repo.GetByEmail(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.Username != "tester" || got.PasswordHash != "hashedpw" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo := jsonfile.NewUserRepository(newTestStore(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.User{Email: "dup@example.com", Username: "one", PasswordHash: "h1"}); err != nil {
		t.Fatalf("Create first: %v", err)
	}
	err := repo.Create(ctx, &domain.User{Email: "dup@example.com", Username: "two", PasswordHash: "h2"})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	got, err := repo.GetByEmail(ctx, "dup@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.Username != "one" {
		t.Fatalf("first registration must survive, got %q", got.Username)
	}
}

func TestUserRepository_Create_ConcurrentSameEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	// two stores on one file behave like two processes sharing it
	storeA, err := jsonfile.Open(path)
	if err != nil {
		t.Fatalf("Open A: %v", err)
	}
	storeB, err := jsonfile.Open(path)
	if err != nil {
		t.Fatalf("Open B: %v", err)
	}
	repos := []*jsonfile.UserRepository{jsonfile.NewUserRepository(storeA), jsonfile.NewUserRepository(storeB)}

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dups      int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repos[i%2].Create(context.Background(), &domain.User{
				Email: "race@example.com", Username: "racer", PasswordHash: "h",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrDuplicateEmail):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful signup, got %d", successes)
	}
	if dups != attempts-1 {
		t.Fatalf("expected %d duplicate errors, got %d", attempts-1, dups)
	}
}

func TestUserRepository_Create_ConcurrentDistinctEmails(t *testing.T) {
	store := newTestStore(t)
	repo := jsonfile.NewUserRepository(store)

	emails := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com"}
	var wg sync.WaitGroup
	for _, email := range emails {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			if err := repo.Create(context.Background(), &domain.User{Email: email, Username: email, PasswordHash: "h"}); err != nil {
				t.Errorf("Create %s: %v", email, err)
			}
		}(email)
	}
	wg.Wait()

	for _, email := range emails {
		if _, err := repo.GetByEmail(context.Background(), email); err != nil {
			t.Fatalf("lost update for %s: %v", email, err)
		}
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	repo := jsonfile.NewUserRepository(newTestStore(t))

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_FindByLogin(t *testing.T) {
	repo := jsonfile.NewUserRepository(newTestStore(t))
	ctx := context.Background()

	for _, u := range []*domain.User{
		{Email: "zed@example.com", Username: "shared", PasswordHash: "z"},
		{Email: "amy@example.com", Username: "shared", PasswordHash: "a"},
		{Email: "bob@example.com", Username: "bob", PasswordHash: "b"},
	} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("Create %s: %v", u.Email, err)
		}
	}

	tests := []struct {
		name       string
		identifier string
		wantEmail  string
	}{
		{"by email", "zed@example.com", "zed@example.com"},
		{"by username", "bob", "bob@example.com"},
		{"username collision resolves in email order", "shared", "amy@example.com"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.FindByLogin(ctx, tc.identifier)
			if err != nil {
				t.Fatalf("FindByLogin: %v", err)
			}
			if got.Email != tc.wantEmail {
				t.Fatalf("expected %s, got %s", tc.wantEmail, got.Email)
			}
		})
	}

	if _, err := repo.FindByLogin(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
