package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/fsutil"
)

// CoverExtractor pulls the cover image out of a book file. A nil cover with
// a nil error means the book has none.
type CoverExtractor interface {
	Extract(ctx context.Context, path string) (*domain.Cover, error)
}

// CoverService resolves book covers under the books root, falling back to a
// placeholder image.
type CoverService struct {
	root        string
	extractor   CoverExtractor
	cache       domain.FileStore // optional
	placeholder *domain.Cover
}

// NewCoverService creates a new CoverService. cache may be nil.
func NewCoverService(root string, extractor CoverExtractor, cache domain.FileStore, placeholder *domain.Cover) (*CoverService, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve books root: %w", err)
	}
	return &CoverService{root: abs, extractor: extractor, cache: cache, placeholder: placeholder}, nil
}

// Cover returns the cover for the book at rel, or the placeholder when the
// book has none or cannot be parsed. The book itself must exist.
func (s *CoverService) Cover(ctx context.Context, id domain.Identity, rel string) (*domain.Cover, error) {
	if !id.Valid() {
		return nil, domain.ErrUnauthorized
	}
	rel, err := fsutil.CleanRelPath(rel)
	if err != nil {
		return nil, err
	}
	abs, err := fsutil.JoinWithinRoot(s.root, rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("stat book: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, domain.ErrNotFound
	}

	key := cacheKey(rel, info)
	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		switch {
		case err == nil && len(data) == 0:
			return s.placeholder, nil
		case err == nil:
			if c, ok := decodeCacheEntry(data); ok {
				c.Source = abs
				return c, nil
			}
			slog.Warn("cover cache entry malformed", "path", rel)
		case !errors.Is(err, domain.ErrNotFound):
			slog.Warn("cover cache read failed", "path", rel, "error", err)
		}
	}

	c, err := s.extractor.Extract(ctx, abs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Warn("cover extraction failed", "path", rel, "error", err)
		return s.placeholder, nil
	}

	if s.cache != nil {
		var data []byte
		if c != nil {
			data = encodeCacheEntry(c)
		}
		// an empty blob records "no cover" so the book is not reparsed
		if err := s.cache.Save(ctx, key, data); err != nil {
			slog.Warn("cover cache write failed", "path", rel, "error", err)
		}
	}

	if c == nil {
		return s.placeholder, nil
	}
	return c, nil
}

// cacheKey changes whenever the book is replaced or rewritten.
func cacheKey(rel string, info fs.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", rel, info.ModTime().UnixNano(), info.Size())
}

// Cache entries are the content type, a newline, then the image bytes.
func encodeCacheEntry(c *domain.Cover) []byte {
	buf := make([]byte, 0, len(c.ContentType)+1+len(c.Data))
	buf = append(buf, c.ContentType...)
	buf = append(buf, '\n')
	return append(buf, c.Data...)
}

func decodeCacheEntry(data []byte) (*domain.Cover, bool) {
	ct, img, ok := bytes.Cut(data, []byte{'\n'})
	if !ok || len(ct) == 0 || len(img) == 0 {
		return nil, false
	}
	return &domain.Cover{Data: img, ContentType: string(ct)}, true
}
