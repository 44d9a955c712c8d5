package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/nDmitry/podarchive/internal/app"
	"github.com/nDmitry/podarchive/internal/archive"
	"github.com/nDmitry/podarchive/internal/cache"
	"github.com/nDmitry/podarchive/internal/config"
	"github.com/nDmitry/podarchive/internal/download"
	"github.com/nDmitry/podarchive/internal/feed"
)

const (
	exitOK = iota
	exitError
	exitInvalidArgs
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run logs to stdout and prints usage to stderr. It returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, stderr)

	if errors.Is(err, config.ErrHelp) {
		return exitOK
	}

	if err != nil {
		logger := app.NewLogger(stdout, app.LogFormatJSON, slog.LevelInfo)

		if cfg != nil {
			logger = app.NewLogger(stdout, cfg.LogFormat, cfg.LogLevel)
		}

		var validationErr *config.ValidationError

		if errors.As(err, &validationErr) {
			logger.Warn("Invalid argument", "field", validationErr.Field, "error", err)
		} else {
			logger.Warn("Could not read arguments", "error", err)
		}

		return exitInvalidArgs
	}

	logger := app.NewLogger(stdout, cfg.LogFormat, cfg.LogLevel).With("run", uuid.NewString())
	slog.SetDefault(logger)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}

		logger.Info("Received first shutdown signal, stopping after the current file...")
		cancel()

		// If we receive a second signal, exit immediately
		<-sigChan
		logger.Info("Received second shutdown signal, exiting immediately...")
		os.Exit(exitError)
	}()

	var opts []feed.FetcherOption

	if cfg.CacheAddr != "" && cfg.CacheTTL > 0 {
		redisCache, err := cache.NewRedisClient(ctx, cfg.CacheAddr)

		if err != nil {
			logger.Warn("Feed cache is disabled", "error", err)
		} else {
			defer redisCache.Close()
			opts = append(opts, feed.WithCache(redisCache, cfg.CacheTTL))
		}
	}

	client := feed.NewHTTPClient(logger, cfg.UserAgent)

	archiver := archive.New(
		feed.NewFetcher(client, cfg.UserAgent, logger, opts...),
		download.New(client, cfg.DestDir, logger),
		logger,
	)

	summary, err := archiver.Run(ctx, cfg.FeedURI, cfg.Count)

	if err != nil {
		logger.Error("Archiving failed", "error", err,
			"downloaded", summary.Downloaded,
			"skipped", summary.Skipped,
			"failed", summary.Failed)

		return exitError
	}

	logger.Info("Finished",
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	return exitOK
}
