package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/capcom6/difffeed/internal/client"
	"github.com/capcom6/difffeed/internal/config"
	"github.com/capcom6/difffeed/internal/logging"
	"github.com/capcom6/difffeed/internal/rss"
	"github.com/capcom6/difffeed/internal/snapshot"
	"github.com/capcom6/difffeed/internal/updater"
	"github.com/capcom6/difffeed/internal/watcher"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	if err := loadEnv(os.Args); err != nil {
		log.Fatalln(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := newCommand(os.Stdout, os.Stderr)
	if err := cmd.Run(ctx, os.Args); err != nil {
		cancel()
		if errors.Is(err, config.ErrMissingPath) {
			os.Exit(exitUsage)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
}

// loadEnv reads an optional .env file. Nothing is read when no argument is
// given, so a bare invocation only prints the usage.
func loadEnv(args []string) error {
	if len(args) < 2 {
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("can't load .env: %w", err)
	}

	return nil
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	cli.VersionPrinter = func(cmd *cli.Command) {
		config.PrintVersion(cmd.Root().Writer)
	}

	return &cli.Command{
		Name:      "difffeed",
		Usage:     "publish the files added to and removed from a directory as an RSS feed",
		ArgsUsage: config.ArgsUsage,
		Version:   config.Version(),
		Flags:     config.Flags(),
		Writer:    stdout,
		ErrWriter: stderr,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.FromCommand(cmd)
			if errors.Is(err, config.ErrMissingPath) {
				fmt.Fprintf(cmd.Root().ErrWriter, "Usage: %s [flags] %s\n", cmd.Name, config.ArgsUsage)
				return err
			}
			if err != nil {
				return err
			}

			return run(ctx, cfg, cmd.Root().Writer, cmd.Root().ErrWriter)
		},
	}
}

func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	logger, err := logging.New(logging.Config{
		Debug:    cfg.Debug,
		FilePath: cfg.LogFile,
	}, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	filter, err := snapshot.NewFilter(cfg.Excludes)
	if err != nil {
		return err
	}
	if err := filter.ExcludeFiles(cfg.RootPath, cfg.Output, cfg.StorageFile); err != nil {
		return err
	}

	var publisher updater.Publisher
	if cfg.Publish != "" {
		remoteClient, clientErr := client.New(cfg.Publish)
		if clientErr != nil {
			return clientErr
		}
		defer func() { _ = remoteClient.Close() }()
		publisher = remoteClient
	}

	renderer := rss.New(rss.Config{
		Title:       cfg.FeedTitle,
		Link:        cfg.FeedLink,
		Description: cfg.Description,
		Language:    cfg.Language,
		Generator:   "DiffFeed/" + config.Version(),
	})

	update := updater.New(updater.Config{
		RootPath:    cfg.RootPath,
		StorageFile: cfg.StorageFile,
		MaxItems:    cfg.MaxItems,
		Output:      cfg.Output,
	}, snapshot.New(filter), renderer, publisher, stdout, logger)

	if !cfg.Watch {
		_, err := update.Run(ctx)
		return err
	}

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()

	watch := watcher.New(cfg.RootPath, filter, cfg.Debounce, logger)
	ch, err := watch.Watch(watchCtx, wg)
	if err != nil {
		return err
	}

	logger.Info("Watching...", zap.String("path", cfg.RootPath))
	if err := update.Watch(watchCtx, ch); err != nil {
		return err
	}
	logger.Info("Bye!")

	return nil
}
