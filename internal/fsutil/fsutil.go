// Package fsutil resolves user supplied paths against the books root.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/msomdec/ebookshelf/internal/domain"
)

// CleanRelPath takes a user path like "", ".", "/a/b", "a//b" and returns a
// slash-based relative path without a leading slash ("" means root).
// Any ".." segment or NUL byte is rejected rather than collapsed.
func CleanRelPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: NUL byte", domain.ErrPathEscape)
	}
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", domain.ErrPathEscape, p)
		}
	}
	if p == "" || p == "." || p == "/" {
		return "", nil
	}
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return "", nil
	}
	return p, nil
}

// JoinWithinRoot returns the absolute filesystem path under rootAbs for rel.
// If the target exists and is (or passes through) a symlink, the resolved
// location must still be inside the root.
func JoinWithinRoot(rootAbs, rel string) (string, error) {
	rel, err := CleanRelPath(rel)
	if err != nil {
		return "", err
	}
	rootClean := filepath.Clean(rootAbs)
	abs := filepath.Clean(filepath.Join(rootClean, filepath.FromSlash(rel)))
	if !within(rootClean, abs) {
		return "", fmt.Errorf("%w: %q", domain.ErrPathEscape, rel)
	}
	if err := checkSymlinks(rootClean, abs); err != nil {
		return "", err
	}
	return abs, nil
}

// JoinName appends a single file name to a directory path. Names carrying a
// separator or naming a parent are refused.
func JoinName(dirAbs, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\") || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: bad file name %q", domain.ErrPathEscape, name)
	}
	return filepath.Join(dirAbs, name), nil
}

// JoinRel joins a parent relative path and a child name.
func JoinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func within(root, p string) bool {
	return p == root || strings.HasPrefix(p, root+string(filepath.Separator))
}

func checkSymlinks(root, abs string) error {
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// nothing on disk yet; the lexical check already bounded it
			return nil
		}
		return err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return err
	}
	if !within(realRoot, resolved) {
		return fmt.Errorf("%w: symlink leaves root", domain.ErrPathEscape)
	}
	return nil
}
