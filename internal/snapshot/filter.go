package snapshot

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnorePrefixes are matched case-insensitively against the final
// component of every path.
//
//nolint:gochecknoglobals // read-only defaults
var DefaultIgnorePrefixes = []string{".", "cvs", ".svn", "trash"}

type Filter struct {
	prefixes []string
	patterns []string
	files    map[string]struct{}
}

// NewFilter returns a filter applying DefaultIgnorePrefixes and the given
// doublestar patterns.
func NewFilter(patterns []string) (*Filter, error) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}

	return &Filter{
		prefixes: DefaultIgnorePrefixes,
		patterns: patterns,
		files:    map[string]struct{}{},
	}, nil
}

// ExcludeFiles skips the given files when they live under rootPath. Files
// outside the root, or empty names, are ignored.
func (f *Filter) ExcludeFiles(rootPath string, files ...string) error {
	root, err := ResolveRoot(rootPath)
	if err != nil {
		return err
	}

	for _, file := range files {
		if file == "" {
			continue
		}

		fullpath, err := resolveFile(file)
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, fullpath)
		if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
			continue
		}

		f.files[filepath.ToSlash(relPath)] = struct{}{}
	}

	return nil
}

// Excluded reports whether relPath (slash separated, relative to the root)
// must be skipped. For a directory this also means its content is pruned.
func (f *Filter) Excluded(relPath string) bool {
	if f == nil {
		return false
	}

	if _, ok := f.files[relPath]; ok {
		return true
	}

	base := strings.ToLower(path.Base(relPath))
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}

	for _, pattern := range f.patterns {
		// patterns are validated in NewFilter
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}

	return false
}

// resolveFile makes file absolute and resolves symlinks in its directory.
// The file itself may not exist yet.
func resolveFile(file string) (string, error) {
	fullpath, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("can't resolve %s: %w", file, err)
	}

	// a missing directory can't be inside an existing root
	if dir, err := filepath.EvalSymlinks(filepath.Dir(fullpath)); err == nil {
		return filepath.Join(dir, filepath.Base(fullpath)), nil
	}

	return fullpath, nil
}
