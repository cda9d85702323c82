// Package library scopes tool access to a document directory: path
// resolution that refuses anything outside the root, and discovery of
// the protocol PDFs stored under it.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath   = errors.New("path cannot be empty")
	ErrOutsideRoot = errors.New("path is outside the allowed directory")
	ErrNotDir      = errors.New("path is not a directory")
)

// Root resolves caller-supplied paths against one directory.
type Root struct {
	dir string
}

// NewRoot creates a root for dir. The directory does not have to exist yet.
func NewRoot(dir string) (*Root, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("root directory: %w", ErrEmptyPath)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	return &Root{dir: abs}, nil
}

// Dir returns the absolute root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Resolve returns the absolute form of path. Relative paths are taken
// relative to the root; the result must lie within it, symlinks included.
func (r *Root) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	ok, err := r.Contains(abs)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return abs, nil
}

// ResolveDir is Resolve for directories; an empty path means the root.
func (r *Root) ResolveDir(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return r.dir, nil
	}
	dir, err := r.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDir, path)
	}
	return dir, nil
}

// Contains reports whether path lies within the root. Both the lexical
// path and, when it exists, its symlink target are checked.
func (r *Root) Contains(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	abs = filepath.Clean(abs)

	if !within(abs, r.dir) {
		return false, nil
	}

	target, err := filepath.EvalSymlinks(abs)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to evaluate symlinks: %w", err)
	}
	realDir := r.dir
	if resolved, err := filepath.EvalSymlinks(r.dir); err == nil {
		realDir = resolved
	}
	return within(target, realDir) || within(target, r.dir), nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
