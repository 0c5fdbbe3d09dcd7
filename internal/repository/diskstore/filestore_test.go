package diskstore_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/repository/diskstore"
)

func TestFileStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := diskstore.New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := "sci-fi/Dune.epub|1700000000|12345"
	if err := store.Save(ctx, key, []byte("cover")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("cover")) {
		t.Fatalf("expected %q, got %q", "cover", got)
	}

	if err := store.Save(ctx, key, []byte("newer")); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, _ = store.Get(ctx, key)
	if string(got) != "newer" {
		t.Fatalf("expected overwrite, got %q", got)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete of a missing key should succeed, got %v", err)
	}
}

func TestFileStore_EmptyBlob(t *testing.T) {
	ctx := context.Background()
	store, _ := diskstore.New(t.TempDir())

	if err := store.Save(ctx, "no-cover", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(ctx, "no-cover")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty blob, got %d bytes", len(got))
	}
}

func TestFileStore_KeysStayInsideDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := diskstore.New(dir)

	if err := store.Save(ctx, "../../escape", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "..", "escape")); err == nil {
		t.Fatal("key must not be used as a path")
	}
	if got, _ := store.Get(ctx, "../../escape"); string(got) != "x" {
		t.Fatalf("expected round trip through hashed key, got %q", got)
	}
}
