// Package cover extracts cover images from ebook files.
package cover

import (
	"context"

	"github.com/msomdec/ebookshelf/internal/domain"
)

// DefaultDPI matches the resolution of an unscaled PDF page (one pixel per point).
const DefaultDPI = 72

// Options tunes cover extraction.
type Options struct {
	DPI     float64 // PDF render resolution, DefaultDPI when zero
	MaxEdge int     // downscale PDF covers to fit this edge, 0 keeps the rendered size
}

type strategy interface {
	extract(ctx context.Context, path string) (*domain.Cover, error)
}

// Extractor picks one strategy per book format. It holds no per-file state
// and is safe for concurrent use.
type Extractor struct {
	strategies map[domain.BookFormat]strategy
}

// NewExtractor creates an Extractor for the supported formats.
func NewExtractor(opts Options) *Extractor {
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	return &Extractor{
		strategies: map[domain.BookFormat]strategy{
			domain.FormatPDF:  pdfStrategy{dpi: opts.DPI, maxEdge: opts.MaxEdge},
			domain.FormatEPUB: epubStrategy{},
		},
	}
}

// Extract returns the cover of the book at path. A nil cover with a nil error
// means the book has no cover. Unparsable EPUBs fail with domain.ErrCorruptFile.
func (e *Extractor) Extract(ctx context.Context, path string) (*domain.Cover, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := e.strategies[domain.FormatFromName(path)]
	if !ok {
		return nil, nil
	}
	return s.extract(ctx, path)
}
