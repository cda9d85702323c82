package library

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Document is one PDF found under the root.
type Document struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ListOptions filters List.
type ListOptions struct {
	// Query keeps documents whose file name contains every query word.
	Query string
	// MaxFileSize drops larger files; zero keeps everything.
	MaxFileSize int64
	// Limit stops the walk after that many documents; zero means no limit.
	Limit int
}

// List walks dir (resolved against the root) for PDF files. Hidden
// directories, empty files and entries that resolve outside the root are
// skipped; unreadable entries do not stop the walk.
func (r *Root) List(dir string, opts ListOptions) ([]Document, error) {
	base, err := r.ResolveDir(dir)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	docs := []Document{}
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // keep walking past unreadable entries
		}
		if d.IsDir() {
			if path != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if opts.Limit > 0 && len(docs) >= opts.Limit {
			return filepath.SkipAll
		}
		if !isPDFName(d.Name()) || !matchesQuery(d.Name(), query) {
			return nil
		}
		if ok, err := r.Contains(path); err != nil || !ok {
			return nil //nolint:nilerr // symlinks leaving the root are ignored
		}

		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr
		}
		if info.Size() == 0 || (opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize) {
			return nil
		}

		docs = append(docs, Document{
			Path:     path,
			Name:     d.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}
	return docs, nil
}

func isPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// matchesQuery reports whether every word of query occurs in some word of
// the file name. query must already be lower case.
func matchesQuery(name, query string) bool {
	if query == "" {
		return true
	}
	name = strings.ToLower(name)
	if strings.Contains(name, query) {
		return true
	}

	words := splitWords(strings.TrimSuffix(name, ".pdf"))
	for _, q := range splitWords(query) {
		found := false
		for _, w := range words {
			if strings.Contains(w, q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(" _-.()[]", r)
	})
}
