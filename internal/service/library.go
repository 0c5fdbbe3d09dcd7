package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/fsutil"
)

// LibraryService lists, serves, and accepts books under the books root.
type LibraryService struct {
	root      string
	publicURL string
}

// UploadFile is one file of an upload batch. Name is the client supplied file name.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// NewLibraryService creates a new LibraryService rooted at root. publicURL,
// when set, prefixes generated download links.
func NewLibraryService(root, publicURL string) (*LibraryService, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve books root: %w", err)
	}
	return &LibraryService{root: abs, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// Root returns the absolute books root.
func (s *LibraryService) Root() string {
	return s.root
}

// List returns the direct subdirectories and books of the directory at rel.
func (s *LibraryService) List(ctx context.Context, id domain.Identity, rel string) (*domain.Directory, error) {
	if !id.Valid() {
		return nil, domain.ErrUnauthorized
	}
	rel, abs, err := s.resolveDir(rel)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	dir := &domain.Directory{Path: rel}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		info, ok := s.entryInfo(abs, rel, e)
		if !ok {
			continue
		}
		switch {
		case info.IsDir():
			dir.Dirs = append(dir.Dirs, name)
		case info.Mode().IsRegular() && domain.IsAllowedBook(name):
			dir.Books = append(dir.Books, domain.Book{
				Name:    name,
				Dir:     rel,
				Format:  domain.FormatFromName(name),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
	}

	sort.Slice(dir.Dirs, func(i, j int) bool { return lessFold(dir.Dirs[i], dir.Dirs[j]) })
	sort.Slice(dir.Books, func(i, j int) bool { return lessFold(dir.Books[i].Name, dir.Books[j].Name) })
	return dir, nil
}

// entryInfo stats a directory entry, following symlinks only when they
// resolve inside the root.
func (s *LibraryService) entryInfo(dirAbs, dirRel string, e fs.DirEntry) (fs.FileInfo, bool) {
	if e.Type()&fs.ModeSymlink == 0 {
		info, err := e.Info()
		return info, err == nil
	}
	target, err := fsutil.JoinWithinRoot(s.root, fsutil.JoinRel(dirRel, e.Name()))
	if err != nil {
		slog.Debug("skipping symlink", "path", filepath.Join(dirAbs, e.Name()), "error", err)
		return nil, false
	}
	info, err := os.Stat(target)
	return info, err == nil
}

// DownloadLinks returns one escaped /books/ link per book in the directory at rel.
func (s *LibraryService) DownloadLinks(ctx context.Context, id domain.Identity, rel string) ([]string, error) {
	dir, err := s.List(ctx, id, rel)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0, len(dir.Books))
	for _, b := range dir.Books {
		links = append(links, s.publicURL+BookURL(fsutil.JoinRel(b.Dir, b.Name)))
	}
	return links, nil
}

// BookURL returns the server-relative download link for the book at rel.
func BookURL(rel string) string {
	return "/books/" + EscapePath(rel)
}

// routeSegments are first path segments claimed by other routes. Directories
// with these names are linked under /browse/ instead.
var routeSegments = map[string]bool{
	"books": true, "cover": true, "download_dir": true, "zip": true, "upload": true,
	"static": true, "dav": true, "browse": true, "healthz": true,
	"login": true, "logout": true, "signup": true,
}

// DirURL returns the server-relative link to the library page of the
// directory at rel.
func DirURL(rel string) string {
	first, _, _ := strings.Cut(rel, "/")
	if routeSegments[first] {
		return "/browse/" + EscapePath(rel)
	}
	return "/" + EscapePath(rel)
}

// EscapePath escapes each slash separated segment of rel.
func EscapePath(rel string) string {
	segs := strings.Split(rel, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// ResolveFile returns the absolute path and info of the regular file at rel.
// Any file under the root can be downloaded, not only listed books.
func (s *LibraryService) ResolveFile(ctx context.Context, id domain.Identity, rel string) (string, fs.FileInfo, error) {
	if !id.Valid() {
		return "", nil, domain.ErrUnauthorized
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	rel, err := fsutil.CleanRelPath(rel)
	if err != nil {
		return "", nil, err
	}
	if rel == "" {
		return "", nil, domain.ErrNotFound
	}
	abs, err := fsutil.JoinWithinRoot(s.root, rel)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, domain.ErrNotFound
		}
		return "", nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, domain.ErrNotFound
	}
	return abs, info, nil
}

// Upload stores every file with an allowed book extension into the directory
// at rel and reports the rest as rejected. An existing book of the same name
// is replaced.
func (s *LibraryService) Upload(ctx context.Context, id domain.Identity, rel string, files []UploadFile) (saved, rejected []string, err error) {
	if !id.Valid() {
		return nil, nil, domain.ErrUnauthorized
	}
	_, abs, err := s.resolveDir(rel)
	if err != nil {
		return nil, nil, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return saved, rejected, err
		}
		if f.Name == "" {
			continue
		}
		if strings.HasPrefix(f.Name, ".") || !domain.IsAllowedBook(f.Name) {
			rejected = append(rejected, f.Name)
			continue
		}
		dst, err := fsutil.JoinName(abs, f.Name)
		if err != nil {
			rejected = append(rejected, f.Name)
			continue
		}
		if err := writeAtomic(abs, dst, f.Content); err != nil {
			return saved, rejected, fmt.Errorf("save %s: %w", f.Name, err)
		}
		saved = append(saved, f.Name)
	}
	return saved, rejected, nil
}

// writeAtomic copies r into a hidden temp file in dir and renames it over dst.
func writeAtomic(dir, dst string, r io.Reader) error {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// WriteZip streams the books of the directory at rel as a zip archive.
// Subdirectories are not included.
func (s *LibraryService) WriteZip(ctx context.Context, id domain.Identity, rel string, w io.Writer) error {
	dir, err := s.List(ctx, id, rel)
	if err != nil {
		return err
	}
	_, abs, err := s.resolveDir(dir.Path)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, b := range dir.Books {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addZipEntry(zw, filepath.Join(abs, b.Name), b); err != nil {
			return fmt.Errorf("zip %s: %w", b.Name, err)
		}
	}
	return zw.Close()
}

func addZipEntry(zw *zip.Writer, path string, b domain.Book) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	wr, err := zw.CreateHeader(&zip.FileHeader{
		Name:     b.Name,
		Method:   zip.Deflate,
		Modified: b.ModTime,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(wr, f)
	return err
}

// resolveDir cleans rel and checks it names a directory under the root.
func (s *LibraryService) resolveDir(rel string) (string, string, error) {
	rel, err := fsutil.CleanRelPath(rel)
	if err != nil {
		return "", "", err
	}
	abs, err := fsutil.JoinWithinRoot(s.root, rel)
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", domain.ErrNotFound
		}
		return "", "", fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return "", "", domain.ErrNotFound
	}
	return rel, abs, nil
}

func lessFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
