package handler_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/msomdec/ebookshelf/internal/cover"
	"github.com/msomdec/ebookshelf/internal/handler"
	"github.com/msomdec/ebookshelf/internal/repository/jsonfile"
	"github.com/msomdec/ebookshelf/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

const (
	testEmail    = "reader@example.com"
	testUsername = "reader"
	testPassword = "password123"
)

type testEnv struct {
	srv  *httptest.Server
	root string
	auth *service.AuthService
}

type envOption func(*handler.Options)

func newTestAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	store, err := jsonfile.Open(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	return service.NewAuthService(jsonfile.NewUserRepository(store), testJWTSecret, 4)
}

// newTestEnv starts a server over a books root holding:
//
//	a.epub (no cover), notes.txt, Sci Fi/Dune #1.epub, empty/
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.epub"), "not really an epub")
	writeFile(t, filepath.Join(root, "notes.txt"), "notes")
	writeFile(t, filepath.Join(root, "Sci Fi", "Dune #1.epub"), "dune")
	os.MkdirAll(filepath.Join(root, "empty"), 0o755)

	auth := newTestAuthService(t)
	library, err := service.NewLibraryService(root, "")
	if err != nil {
		t.Fatalf("NewLibraryService: %v", err)
	}
	placeholder, err := cover.Placeholder("")
	if err != nil {
		t.Fatalf("Placeholder: %v", err)
	}
	covers, err := service.NewCoverService(root, cover.NewExtractor(cover.Options{}), nil, placeholder)
	if err != nil {
		t.Fatalf("NewCoverService: %v", err)
	}

	o := handler.Options{
		Auth:           auth,
		Library:        library,
		Covers:         covers,
		MaxUploadBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(&o)
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, o)

	srv := httptest.NewServer(handler.SecurityHeaders(handler.RequestLogger(mux)))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, root: root, auth: auth}
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

// newClient returns a client with a cookie jar that does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // don't follow redirects automatically
		},
	}
}

// loggedInClient signs up the test account and logs in.
func (e *testEnv) loggedInClient(t *testing.T) *http.Client {
	t.Helper()
	if _, err := e.auth.Signup(context.Background(), testEmail, testUsername, testPassword); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	client := newClient(t)
	resp, err := client.PostForm(e.srv.URL+"/login", url.Values{
		"email_or_username": {testEmail},
		"password":          {testPassword},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("login: expected 303 to /, got %d to %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	return client
}

// tokenFor logs in directly through the service.
func tokenFor(t *testing.T, auth *service.AuthService) string {
	t.Helper()
	ctx := context.Background()
	if _, err := auth.Signup(ctx, testEmail, testUsername, testPassword); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	token, _, err := auth.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return token
}
