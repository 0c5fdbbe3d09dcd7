package handler_test

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msomdec/ebookshelf/internal/handler"
)

func davRequest(t *testing.T, method, u string, body io.Reader, user, pass string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	if method == "PROPFIND" {
		req.Header.Set("Depth", "1")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, u, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebDAV_ReadOnlyWithBasicAuth(t *testing.T) {
	env := newTestEnv(t, func(o *handler.Options) { o.WebDAV = true })
	tokenFor(t, env.auth)

	// no credentials
	resp := davRequest(t, "PROPFIND", env.srv.URL+"/dav/", nil, "", "")
	if resp.StatusCode != http.StatusUnauthorized || resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatalf("expected 401 challenge, got %d", resp.StatusCode)
	}

	// wrong password
	resp = davRequest(t, "PROPFIND", env.srv.URL+"/dav/", nil, testEmail, "nope")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", resp.StatusCode)
	}

	// listing by username
	resp = davRequest(t, "PROPFIND", env.srv.URL+"/dav/", nil, testUsername, testPassword)
	if resp.StatusCode != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "a.epub") {
		t.Fatal("expected a.epub in PROPFIND listing")
	}

	// download
	resp = davRequest(t, http.MethodGet, env.srv.URL+"/dav/Sci%20Fi/Dune%20%231.epub", nil, testEmail, testPassword)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if data, _ := io.ReadAll(resp.Body); string(data) != "dune" {
		t.Fatalf("unexpected body %q", data)
	}

	// writes are refused
	for _, method := range []string{http.MethodPut, http.MethodDelete, "MKCOL"} {
		resp = davRequest(t, method, env.srv.URL+"/dav/new.pdf", strings.NewReader("x"), testEmail, testPassword)
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", method, resp.StatusCode)
		}
	}
	if _, err := os.Stat(filepath.Join(env.root, "new.pdf")); !os.IsNotExist(err) {
		t.Fatal("WebDAV must not create files")
	}
}

func TestWebDAV_DisabledByDefault(t *testing.T) {
	env := newTestEnv(t)
	tokenFor(t, env.auth)

	resp := davRequest(t, "PROPFIND", env.srv.URL+"/dav/", nil, testEmail, testPassword)
	if resp.StatusCode == http.StatusMultiStatus {
		t.Fatal("WebDAV should not be mounted unless enabled")
	}
}

func TestWebDAV_StaysInsideRoot(t *testing.T) {
	env := newTestEnv(t, func(o *handler.Options) { o.WebDAV = true })
	tokenFor(t, env.auth)

	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.txt"), "TOP-SECRET")
	if err := os.Symlink(outside, filepath.Join(env.root, "escape")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	writeFile(t, filepath.Join(env.root, ".covers", "blob"), "cached")

	for _, p := range []string{"/dav/escape/secret.txt", "/dav/.covers/blob"} {
		resp := davRequest(t, http.MethodGet, env.srv.URL+p, nil, testEmail, testPassword)
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusOK || strings.Contains(string(body), "TOP-SECRET") || string(body) == "cached" {
			t.Fatalf("GET %s: expected refusal, got %d %q", p, resp.StatusCode, body)
		}
	}

	resp := davRequest(t, "PROPFIND", env.srv.URL+"/dav/", nil, testEmail, testPassword)
	if resp.StatusCode != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"escape", ".covers"} {
		if strings.Contains(string(body), name) {
			t.Fatalf("PROPFIND listing should not mention %q", name)
		}
	}
	if !strings.Contains(string(body), "a.epub") {
		t.Fatal("expected a.epub in PROPFIND listing")
	}
}
