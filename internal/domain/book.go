package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// BookFormat is the tagged variant selecting a cover extraction strategy.
type BookFormat int

const (
	FormatUnsupported BookFormat = iota
	FormatPDF
	FormatEPUB
)

func (f BookFormat) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatEPUB:
		return "epub"
	default:
		return "unsupported"
	}
}

// FormatFromName picks the format from the file extension, case-insensitively.
func FormatFromName(name string) BookFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".epub":
		return FormatEPUB
	default:
		return FormatUnsupported
	}
}

// IsAllowedBook reports whether name has one of the allowed book extensions.
func IsAllowedBook(name string) bool {
	return FormatFromName(name) != FormatUnsupported
}

// Book is a single ebook file found while scanning a directory.
type Book struct {
	Name    string
	Dir     string // parent path relative to the books root, "" for root
	Format  BookFormat
	Size    int64
	ModTime time.Time
}

// Directory is the transient listing of one directory under the books root.
type Directory struct {
	Path  string // relative, slash-separated, "" for root
	Dirs  []string
	Books []Book
}

// Parent returns the relative path of the parent directory, or "" at root.
func (d *Directory) Parent() string {
	i := strings.LastIndex(d.Path, "/")
	if i < 0 {
		return ""
	}
	return d.Path[:i]
}
