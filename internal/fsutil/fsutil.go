package fsutil

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrPathEscape  = errors.New("path escapes root")
)

// CleanRelPath turns a request path like "", "/", "/a//b/../c" or "a\b" into a
// slash-separated relative path without a leading slash ("" means root).
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// JoinWithinRoot returns the filesystem path under root for a request path.
// The result never leaves root.
func JoinWithinRoot(root, reqPath string) (string, error) {
	if strings.ContainsRune(reqPath, 0) {
		return "", ErrInvalidPath
	}
	rootClean := filepath.Clean(root)
	rel := CleanRelPath(reqPath)
	if rel == "" {
		return rootClean, nil
	}
	abs := filepath.Clean(filepath.Join(rootClean, filepath.FromSlash(rel)))
	if !Within(rootClean, abs) {
		return "", errors.Wrapf(ErrPathEscape, "request %q", reqPath)
	}
	return abs, nil
}

// Within reports whether p is root itself or lies below it.
func Within(root, p string) bool {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return r == "." || (r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)))
}
