package snapshot

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/lo"
)

// FileSet lists slash separated paths relative to a scan root.
type FileSet []string

// Result is the outcome of comparing the current tree with a previous FileSet.
type Result struct {
	Files   FileSet
	Added   []string
	Removed []string
}

// Changed reports whether anything was added or removed.
func (r Result) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

type Scanner struct {
	Filter *Filter
}

func New(filter *Filter) *Scanner {
	return &Scanner{
		Filter: filter,
	}
}

// CheckRoot returns ErrInvalidPath unless rootPath is an existing directory.
func CheckRoot(rootPath string) error {
	info, err := os.Stat(rootPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, rootPath)
	}

	return nil
}

// ResolveRoot checks rootPath and returns its absolute form with symlinks
// resolved.
func ResolveRoot(rootPath string) (string, error) {
	if err := CheckRoot(rootPath); err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	return resolved, nil
}

// Scan lists every regular file under rootPath, skipping and pruning
// excluded entries. A symlinked root is followed.
func (s *Scanner) Scan(rootPath string) (FileSet, error) {
	rootPath, err := ResolveRoot(rootPath)
	if err != nil {
		return nil, err
	}

	files := FileSet{}
	err = filepath.WalkDir(rootPath, func(fullpath string, d fs.DirEntry, err error) error {
		if fullpath == rootPath {
			return err
		}

		relPath, relErr := filepath.Rel(rootPath, fullpath)
		if relErr != nil {
			return fmt.Errorf("can't make %s relative: %w", fullpath, relErr)
		}
		relPath = filepath.ToSlash(relPath)

		if s.Filter.Excluded(relPath) {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if err != nil {
			// unreadable entries are not part of the snapshot
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if isRegular(fullpath, d) {
			files = append(files, relPath)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("can't scan %s: %w", rootPath, err)
	}

	return files, nil
}

// Diff scans rootPath and compares it with previous.
func (s *Scanner) Diff(rootPath string, previous FileSet) (Result, error) {
	files, err := s.Scan(rootPath)
	if err != nil {
		return Result{}, err
	}

	added, removed := lo.Difference(files, previous)

	return Result{
		Files:   files,
		Added:   added,
		Removed: removed,
	}, nil
}

func isRegular(fullpath string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}

	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}

	info, err := os.Stat(fullpath)
	return err == nil && info.Mode().IsRegular()
}
