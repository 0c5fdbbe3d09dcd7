package view

import (
	"github.com/dustin/go-humanize"

	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/fsutil"
	"github.com/msomdec/ebookshelf/internal/service"
)

func bookPath(b domain.Book) string {
	return fsutil.JoinRel(b.Dir, b.Name)
}

func coverURL(b domain.Book) string {
	return "/cover/" + service.EscapePath(bookPath(b))
}

// bookMeta reads like "2.0 kB · 3 days ago".
func bookMeta(b domain.Book) string {
	return humanize.Bytes(uint64(b.Size)) + " · " + humanize.Time(b.ModTime)
}
