// Package catalog provides a read-only view over the materials directory
// tree. Every query is fail-closed: missing, unreadable or malformed paths
// yield empty results rather than errors, so callers always receive a usable
// (possibly empty) listing.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Index is a live view over the catalog rooted at a base path.
type Index struct {
	base   string
	logger zerolog.Logger
}

// New creates a catalog index rooted at basePath
func New(basePath string, logger zerolog.Logger) *Index {
	return &Index{
		base:   basePath,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Base returns the catalog root path
func (ix *Index) Base() string {
	return ix.base
}

// Join resolves catalog segments to an absolute path under the base.
// Segments that would escape the base are rejected with false.
func (ix *Index) Join(segments ...string) (string, bool) {
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
		if strings.ContainsAny(seg, `/\`) || strings.Contains(seg, "\x00") {
			return "", false
		}
	}

	parts := append([]string{ix.base}, segments...)
	return filepath.Join(parts...), true
}

// ListDirs lists child directory names under the given segments, sorted.
func (ix *Index) ListDirs(segments ...string) []string {
	return ix.list(true, segments...)
}

// ListFiles lists regular file names under the given segments, sorted.
func (ix *Index) ListFiles(segments ...string) []string {
	return ix.list(false, segments...)
}

func (ix *Index) list(dirs bool, segments ...string) []string {
	path, ok := ix.Join(segments...)
	if !ok {
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if !os.IsNotExist(err) {
			ix.logger.Warn().Err(err).Str("path", path).Msg("Failed to read catalog directory")
		}
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() != dirs {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Strings(names)
	return names
}

// FileOK reports whether path is an existing, non-empty regular file
func (ix *Index) FileOK(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// ReadText returns the trimmed text contents of a file, or "" on any failure
func (ix *Index) ReadText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		ix.logger.Warn().Err(err).Str("path", path).Msg("Failed to read catalog file")
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Open opens a catalog file for streaming
func (ix *Index) Open(path string) (*os.File, error) {
	return os.Open(path)
}
