package handler

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/webdav"

	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/fsutil"
	"github.com/msomdec/ebookshelf/internal/service"
)

const davPrefix = "/dav"

// libraryFS exposes the books root read-only. Names resolve through fsutil,
// so symlinks leading out of the root and hidden entries are not reachable.
type libraryFS struct {
	root string
}

func (libraryFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return os.ErrPermission
}

func (libraryFS) RemoveAll(ctx context.Context, name string) error {
	return os.ErrPermission
}

func (libraryFS) Rename(ctx context.Context, oldName, newName string) error {
	return os.ErrPermission
}

func (l libraryFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	rel, abs, err := l.resolve("open", name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	return libraryFile{File: f, lib: l, rel: rel}, nil
}

func (l libraryFS) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	_, abs, err := l.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	return os.Stat(abs)
}

func (l libraryFS) resolve(op, name string) (rel, abs string, err error) {
	rel, err = fsutil.CleanRelPath(name)
	if err == nil && hiddenPath(rel) {
		return "", "", &os.PathError{Op: op, Path: name, Err: os.ErrNotExist}
	}
	if err == nil {
		abs, err = fsutil.JoinWithinRoot(l.root, rel)
	}
	if errors.Is(err, domain.ErrPathEscape) {
		return "", "", &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
	}
	return rel, abs, err
}

func hiddenPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// libraryFile filters directory listings down to what libraryFS can open.
type libraryFile struct {
	*os.File
	lib libraryFS
	rel string
}

func (f libraryFile) Readdir(count int) ([]fs.FileInfo, error) {
	infos, err := f.File.Readdir(count)
	kept := infos[:0]
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), ".") {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if _, err := fsutil.JoinWithinRoot(f.lib.root, fsutil.JoinRel(f.rel, info.Name())); err != nil {
				continue
			}
		}
		kept = append(kept, info)
	}
	return kept, err
}

// NewWebDAVHandler exposes root read-only under /dav/ for e-readers and file
// managers. Requests authenticate with HTTP Basic credentials checked against
// the account store.
func NewWebDAVHandler(root string, auth *service.AuthService, limiter *service.TokenBucket) http.Handler {
	dav := &webdav.Handler{
		Prefix:     davPrefix,
		FileSystem: libraryFS{root: root},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				slog.Debug("webdav", "method", r.Method, "path", r.URL.Path, "error", err)
			}
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			davChallenge(w)
			return
		}
		key := clientIP(r)
		if limiter != nil && !limiter.Allow(key) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		if _, err := auth.Authenticate(r.Context(), user, pass); err != nil {
			davChallenge(w)
			return
		}
		if limiter != nil {
			limiter.Reset(key)
		}
		dav.ServeHTTP(w, r)
	})
}

func davChallenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="ebookshelf", charset="UTF-8"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
