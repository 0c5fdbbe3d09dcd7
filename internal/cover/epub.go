package cover

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/msomdec/ebookshelf/internal/domain"
)

const containerPath = "META-INF/container.xml"

// maxCoverBytes bounds how much of a single zip entry is read into memory.
const maxCoverBytes = 32 << 20

type epubStrategy struct{}

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metas []struct {
		Name    string `xml:"name,attr"`
		Content string `xml:"content,attr"`
	} `xml:"metadata>meta"`
	Items []opfItem `xml:"manifest>item"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// extract returns the raw bytes of the manifest's cover image without re-encoding.
func (epubStrategy) extract(ctx context.Context, p string) (*domain.Cover, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("%w: open epub: %v", domain.ErrCorruptFile, err)
	}
	defer zr.Close()

	var c container
	if err := decodeEntry(&zr.Reader, containerPath, &c); err != nil {
		return nil, err
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: no rootfile in %s", domain.ErrCorruptFile, containerPath)
	}
	opfPath := c.Rootfiles[0].FullPath

	var pkg opfPackage
	if err := decodeEntry(&zr.Reader, opfPath, &pkg); err != nil {
		return nil, err
	}

	item, ok := pkg.coverItem()
	if !ok {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	href, err := url.PathUnescape(item.Href)
	if err != nil {
		href = item.Href
	}
	data, err := readEntry(&zr.Reader, path.Join(path.Dir(opfPath), href))
	if err != nil {
		return nil, err
	}

	ct := item.MediaType
	if ct == "" {
		ct = mimetype.Detect(data).String()
	}
	return &domain.Cover{Source: p, Data: data, ContentType: ct}, nil
}

// coverItem finds the EPUB 3 cover-image item, falling back to the
// EPUB 2 <meta name="cover"> reference.
func (pkg *opfPackage) coverItem() (opfItem, bool) {
	for _, it := range pkg.Items {
		if strings.Contains(" "+it.Properties+" ", " cover-image ") {
			return it, true
		}
	}
	for _, m := range pkg.Metas {
		if m.Name != "cover" || m.Content == "" {
			continue
		}
		for _, it := range pkg.Items {
			if it.ID == m.Content {
				return it, true
			}
		}
	}
	return opfItem{}, false
}

func decodeEntry(zr *zip.Reader, name string, v any) error {
	data, err := readEntry(zr, name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrCorruptFile, name, err)
	}
	return nil
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrCorruptFile, name)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxCoverBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrCorruptFile, name, err)
	}
	if len(data) > maxCoverBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrCorruptFile, name, maxCoverBytes)
	}
	return data, nil
}
