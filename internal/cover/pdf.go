package cover

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	"github.com/msomdec/ebookshelf/internal/domain"
)

type pdfStrategy struct {
	dpi     float64
	maxEdge int
}

// extract renders the first page. Documents MuPDF cannot open and documents
// without pages have no cover.
func (s pdfStrategy) extract(ctx context.Context, path string) (*domain.Cover, error) {
	doc, err := fitz.New(path)
	if err != nil {
		slog.Debug("pdf open failed", "path", path, "error", err)
		return nil, nil
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := doc.ImageDPI(0, s.dpi)
	if err != nil {
		return nil, fmt.Errorf("render first page: %w", err)
	}

	var img image.Image = page
	if s.maxEdge > 0 {
		img = fit(page, s.maxEdge)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode cover: %w", err)
	}
	return &domain.Cover{Source: path, Data: buf.Bytes(), ContentType: "image/png"}, nil
}

// fit scales src down so its longer edge is at most edge. Smaller images are returned as is.
func fit(src image.Image, edge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= edge && h <= edge {
		return src
	}

	nw, nh := edge, edge
	if w > h {
		nh = int(float64(h) * (float64(edge) / float64(w)))
	} else {
		nw = int(float64(w) * (float64(edge) / float64(h)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, max(nw, 1), max(nh, 1)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
