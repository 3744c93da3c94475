package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/capcom6/difffeed/internal/feed"
	"github.com/capcom6/difffeed/internal/rss"
	"github.com/capcom6/difffeed/internal/snapshot"
	"github.com/capcom6/difffeed/internal/watcher"
	"github.com/google/renameio/v2"
	"go.uber.org/zap"
)

// Publisher uploads a rendered feed somewhere.
type Publisher interface {
	Upload(ctx context.Context, content io.Reader) error
}

type Config struct {
	RootPath    string
	StorageFile string
	MaxItems    int
	// Output is the feed file to replace; empty means the Updater's writer.
	// The file is left untouched while its content is current.
	Output string
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Updater struct {
	cfg Config

	differ    feed.Differ
	renderer  *rss.Renderer
	publisher Publisher
	out       io.Writer
	logger    *zap.Logger
}

// New wires an Updater. publisher may be nil.
func New(cfg Config, differ feed.Differ, renderer *rss.Renderer, publisher Publisher, out io.Writer, logger *zap.Logger) *Updater {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Updater{
		cfg: cfg,

		differ:    differ,
		renderer:  renderer,
		publisher: publisher,
		out:       out,
		logger:    logger,
	}
}

// Run performs one load, scan, render, save and publish cycle and reports
// whether a change event was recorded.
//
// The feed is written before the history is saved, so a failed save still
// leaves the computed feed in the output.
func (u *Updater) Run(ctx context.Context) (bool, error) {
	if err := snapshot.CheckRoot(u.cfg.RootPath); err != nil {
		return false, err
	}

	history := u.load()

	changed, err := history.Update(u.differ, u.cfg.RootPath)
	if err != nil {
		return false, err
	}

	var buf bytes.Buffer
	if renderErr := u.renderer.Render(&buf, history); renderErr != nil {
		return changed, fmt.Errorf("%w: %w", ErrOutput, renderErr)
	}

	if writeErr := u.write(buf.Bytes()); writeErr != nil {
		return changed, fmt.Errorf("%w: %w", ErrOutput, writeErr)
	}

	if changed {
		if saveErr := feed.Save(u.cfg.StorageFile, history); saveErr != nil {
			return changed, fmt.Errorf("%w: %w", ErrSave, saveErr)
		}

		events := history.Events()
		latest := events[len(events)-1]
		u.logger.Info("changes recorded",
			zap.Int("added", len(latest.Added())),
			zap.Int("removed", len(latest.Removed())),
			zap.Int("items", len(events)),
		)
	} else {
		u.logger.Debug("no changes")
	}

	if u.publisher != nil {
		if pubErr := u.publisher.Upload(ctx, bytes.NewReader(buf.Bytes())); pubErr != nil {
			return changed, fmt.Errorf("%w: %w", ErrPublish, pubErr)
		}
		u.logger.Debug("feed published")
	}

	return changed, nil
}

// Watch runs a cycle now and then once per event until ctx is done, the
// channel is closed or the root stops being a directory. Other failures are
// logged and the next event is awaited.
func (u *Updater) Watch(ctx context.Context, events watcher.EventsChannel) error {
	if err := u.runLogged(ctx); err != nil {
		return err
	}

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}

			u.logger.Debug("rescanning", zap.Strings("paths", event.RelPaths))
			if err := u.runLogged(ctx); err != nil {
				return err
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func (u *Updater) runLogged(ctx context.Context) error {
	_, err := u.Run(ctx)
	if err == nil {
		return nil
	}

	if errors.Is(err, snapshot.ErrInvalidPath) {
		return err
	}

	u.logger.Error("update failed", zap.Error(err))
	return nil
}

// load maps every storage failure to an empty history.
func (u *Updater) load() *feed.History {
	history, err := feed.Load(u.cfg.StorageFile, u.cfg.MaxItems, feed.WithClock(u.cfg.Clock))
	if err == nil {
		return history
	}

	if errors.Is(err, fs.ErrNotExist) {
		u.logger.Debug("no stored history, starting fresh", zap.String("storage", u.cfg.StorageFile))
	} else {
		u.logger.Warn("ignoring unusable history", zap.String("storage", u.cfg.StorageFile), zap.Error(err))
	}

	return feed.New(u.cfg.MaxItems, feed.WithClock(u.cfg.Clock))
}

func (u *Updater) write(data []byte) error {
	if u.cfg.Output == "" {
		_, err := u.out.Write(data)
		return err
	}

	current, err := os.ReadFile(u.cfg.Output)
	if err == nil && bytes.Equal(current, data) {
		u.logger.Debug("feed unchanged", zap.String("output", u.cfg.Output))
		return nil
	}

	return renameio.WriteFile(u.cfg.Output, data, 0o644)
}
