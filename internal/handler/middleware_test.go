package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/msomdec/ebookshelf/internal/handler"
)

func TestRequireAuth_ValidJWT(t *testing.T) {
	auth := newTestAuthService(t)
	token := tokenFor(t, auth)

	var gotUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = handler.IdentityFromContext(r.Context()).Username
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	w := httptest.NewRecorder()

	handler.RequireAuth(auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotUser != testUsername {
		t.Fatalf("expected user %q, got %q", testUsername, gotUser)
	}
}

func TestRequireAuth_RejectsWithRedirect(t *testing.T) {
	auth := newTestAuthService(t)
	token := tokenFor(t, auth)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"missing cookie", nil},
		{"invalid token", &http.Cookie{Name: "auth_token", Value: "invalid.jwt.token"}},
		{"tampered token", &http.Cookie{Name: "auth_token", Value: token[:len(token)-1] + "X"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("inner handler should not be called")
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()

			handler.RequireAuth(auth, inner).ServeHTTP(w, req)

			if w.Code != http.StatusSeeOther {
				t.Fatalf("expected 303, got %d", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != "/login" {
				t.Fatalf("expected redirect to /login, got %q", loc)
			}
			var hasFlash bool
			for _, c := range w.Result().Cookies() {
				if c.Name == "flash" && c.Value != "" {
					hasFlash = true
				}
			}
			if !hasFlash {
				t.Fatal("expected a flash message cookie")
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	w := httptest.NewRecorder()

	handler.SecurityHeaders(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy", "Content-Security-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("expected %s header", h)
		}
	}
}

func TestRequestLogger_RequestID(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	handler.RequestLogger(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTeapot {
		t.Fatalf("expected status to pass through, got %d", w.Code)
	}
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Fatalf("expected a generated uuid, got %q", w.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	handler.RequestLogger(inner).ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected caller request id to be kept, got %q", got)
	}
}
