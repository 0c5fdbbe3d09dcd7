package view_test

import (
	"bytes"
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/view"
)

func TestLibraryPage_EscapesNamesAndLinks(t *testing.T) {
	dir := &domain.Directory{
		Path: "Sci Fi",
		Dirs: []string{"<script>"},
		Books: []domain.Book{
			{Name: `Dune "#1".epub`, Dir: "Sci Fi", Format: domain.FormatEPUB, Size: 2048, ModTime: time.Now()},
		},
	}

	var buf bytes.Buffer
	if err := view.LibraryPage("reader", dir, []string{"Upload <ok>"}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := buf.String()

	for _, want := range []string{
		`href="/Sci%20Fi/%3Cscript%3E"`,
		`&lt;script&gt;/`,
		`src="/cover/Sci%20Fi/Dune%20%22%231%22.epub"`,
		`href="/books/Sci%20Fi/Dune%20%22%231%22.epub"`,
		`action="/upload/Sci%20Fi"`,
		`data-links="/download_dir/Sci%20Fi"`,
		`href="/zip/Sci%20Fi"`,
		`Dune &#34;#1&#34;.epub`,
		`Upload &lt;ok&gt;`,
		`Books Count: 1`,
		`2.0 kB`,
		`.. (Go Up)`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if strings.Contains(body, "<script>/") {
		t.Error("directory name must be escaped")
	}
}

func TestLibraryPage_RootHasNoParentLink(t *testing.T) {
	var buf bytes.Buffer
	if err := view.LibraryPage("reader", &domain.Directory{}, nil).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := buf.String()
	if strings.Contains(body, "Go Up") {
		t.Error("root listing should not link to a parent")
	}
	if !strings.Contains(body, `action="/upload/"`) {
		t.Error("root upload form should post to /upload/")
	}
}

func TestAuthPages(t *testing.T) {
	var buf bytes.Buffer
	if err := view.LoginPage([]string{"You need to be logged in to access the book collection."}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render login: %v", err)
	}
	if !strings.Contains(buf.String(), `name="email_or_username"`) || !strings.Contains(buf.String(), "You need to be logged in") {
		t.Fatal("login page missing form field or flash")
	}

	buf.Reset()
	if err := view.SignupPage(nil).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render signup: %v", err)
	}
	for _, field := range []string{`name="email"`, `name="username"`, `name="password"`} {
		if !strings.Contains(buf.String(), field) {
			t.Errorf("signup page missing %s", field)
		}
	}
}

func TestStatic(t *testing.T) {
	for _, name := range []string{"style.css", "library.js"} {
		if _, err := fs.Stat(view.Static(), name); err != nil {
			t.Errorf("missing static asset %s: %v", name, err)
		}
	}
}
