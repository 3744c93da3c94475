package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/capcom6/difffeed/internal/snapshot"
	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type Watcher struct {
	RootPath string
	Filter   *snapshot.Filter
	Debounce time.Duration

	logger    *zap.Logger
	absRoot   string
	fswatcher *fsnotify.Watcher
	events    chan Event
	pending   map[string]struct{}
}

func New(rootPath string, filter *snapshot.Filter, debounce time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{
		RootPath: rootPath,
		Filter:   filter,
		Debounce: debounce,

		logger: logger,
	}
}

// Watch starts watching the tree. Bursts of changes are coalesced into one
// Event once nothing happened for the debounce window. The channel is closed
// when ctx is done.
func (w *Watcher) Watch(ctx context.Context, wg *sync.WaitGroup) (EventsChannel, error) {
	if w.events != nil {
		return w.events, nil
	}

	rootPath, err := w.prepareRoot()
	if err != nil {
		return nil, fmt.Errorf("prepareRoot: %w", err)
	}
	w.absRoot = rootPath

	w.fswatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}

	if err := w.addRecursive(rootPath); err != nil {
		_ = w.fswatcher.Close()
		return nil, fmt.Errorf("addRecursive: %w", err)
	}

	w.events = make(chan Event, 1)
	w.pending = make(map[string]struct{})

	wg.Add(1)
	go func() {
		defer func() {
			w.fswatcher.Close()
			close(w.events)
			w.fswatcher = nil
			w.pending = nil
			w.events = nil
			wg.Done()
		}()

		timer := time.NewTimer(w.Debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case event, ok := <-w.fswatcher.Events:
				if !ok {
					return
				}

				if w.processEvent(event) {
					timer.Reset(w.Debounce)
				}

			case err, ok := <-w.fswatcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", zap.Error(err))

			case <-timer.C:
				if !w.flush() {
					// previous event not consumed yet
					timer.Reset(w.Debounce)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return w.events, nil
}

// processEvent records a relevant change and reports whether it was one.
func (w *Watcher) processEvent(source fsnotify.Event) bool {
	if source.Op == fsnotify.Chmod {
		return false
	}
	if source.Name == "" || source.Name == "." {
		return false
	}

	relPath, err := filepath.Rel(w.absRoot, source.Name)
	if err != nil {
		w.logger.Warn("can't make path relative", zap.String("path", source.Name), zap.Error(err))
		return false
	}
	relPath = filepath.ToSlash(relPath)

	if relPath == "." || w.isExcluded(relPath) {
		return false
	}

	if source.Has(fsnotify.Remove) || source.Has(fsnotify.Rename) {
		for _, entry := range w.fswatcher.WatchList() {
			if entry == source.Name || strings.HasPrefix(entry, source.Name+string(filepath.Separator)) {
				_ = w.fswatcher.Remove(entry)
			}
		}
	} else if source.Has(fsnotify.Create) {
		if ok, _ := w.isDir(source.Name); ok {
			if err := w.addRecursive(source.Name); err != nil {
				w.logger.Warn("can't watch new directory", zap.String("path", relPath), zap.Error(err))
			}
		}
	}

	w.logger.Debug("change", zap.String("path", relPath), zap.Stringer("op", source.Op))
	w.pending[relPath] = struct{}{}

	return true
}

// flush hands pending changes to the consumer without blocking.
func (w *Watcher) flush() bool {
	if len(w.pending) == 0 {
		return true
	}

	paths := lo.Keys(w.pending)
	slices.Sort(paths)

	select {
	case w.events <- Event{RelPaths: paths}:
		clear(w.pending)
		return true
	default:
		return false
	}
}

func (w *Watcher) isDir(fullpath string) (bool, error) {
	info, err := os.Stat(fullpath)
	if err != nil {
		return false, fmt.Errorf("os.Stat: %w", err)
	}

	return info.IsDir(), nil
}

// prepareRoot resolves the root the way the scanner does, so event paths
// are relative to the same directory.
func (w *Watcher) prepareRoot() (string, error) {
	return snapshot.ResolveRoot(w.RootPath)
}

func (w *Watcher) addRecursive(fullpath string) error {
	if fullpath != w.absRoot {
		relPath, err := filepath.Rel(w.absRoot, fullpath)
		if err != nil {
			return fmt.Errorf("filepath.Rel: %w", err)
		}
		if w.isExcluded(filepath.ToSlash(relPath)) {
			return nil
		}
	}

	err := w.fswatcher.Add(fullpath)
	if err != nil {
		return fmt.Errorf("fswatcher.Add: %w", err)
	}

	entries, err := os.ReadDir(fullpath)
	if err != nil {
		return fmt.Errorf("os.ReadDir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if err := w.addRecursive(filepath.Join(fullpath, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

func (w *Watcher) isExcluded(relPath string) bool {
	return w.Filter.Excluded(relPath)
}
