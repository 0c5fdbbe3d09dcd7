package cover

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	"github.com/msomdec/ebookshelf/internal/domain"
)

// Placeholder loads the image served for books without a cover. An empty
// path yields a generated PNG in the library page's colours.
func Placeholder(path string) (*domain.Cover, error) {
	if path == "" {
		return generatedPlaceholder()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read placeholder: %w", err)
	}
	return &domain.Cover{Source: path, Data: data, ContentType: mimetype.Detect(data).String()}, nil
}

func generatedPlaceholder() (*domain.Cover, error) {
	const w, h = 150, 250
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0x2c, 0x2c, 0x2c, 0xff}), image.Point{}, draw.Src)

	// spine and a title block
	spine := color.RGBA{0x3a, 0x3a, 0x3a, 0xff}
	draw.Draw(img, image.Rect(0, 0, 12, h), image.NewUniform(spine), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(30, 60, w-18, 110), image.NewUniform(color.RGBA{0x56, 0x56, 0x56, 0xff}), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return &domain.Cover{Source: "placeholder", Data: buf.Bytes(), ContentType: "image/png"}, nil
}
