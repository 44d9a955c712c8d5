package archive

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/url"

	"github.com/nDmitry/podarchive/internal/entity"
	"github.com/nDmitry/podarchive/internal/feed"
)

// FeedFetcher returns the raw feed document
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURI *url.URL) ([]byte, error)
}

// Downloader saves a single enclosure
type Downloader interface {
	Download(ctx context.Context, enclosure entity.Enclosure) entity.DownloadResult
}

// Summary counts the outcomes of a run
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

func (s Summary) Total() int {
	return s.Downloaded + s.Skipped + s.Failed
}

// Archiver runs the fetch, parse and download pipeline
type Archiver struct {
	fetcher    FeedFetcher
	downloader Downloader
	logger     *slog.Logger
}

func New(f FeedFetcher, d Downloader, logger *slog.Logger) *Archiver {
	return &Archiver{
		fetcher:    f,
		downloader: d,
		logger:     logger,
	}
}

// Run downloads the first count enclosures of the feed, in document order and
// one at a time. Fetch and parse errors abort the run, a failed download does
// not. Cancelling ctx stops the run before the next enclosure.
func (a *Archiver) Run(ctx context.Context, feedURI *url.URL, count int) (Summary, error) {
	var summary Summary

	a.logger.Info("Processing...", "feed", feedURI.String(), "latest", count)

	body, err := a.fetcher.Fetch(ctx, feedURI)

	if err != nil {
		return summary, fmt.Errorf("could not fetch the feed %s: %w", feedURI, err)
	}

	a.logger.Info("Extracting file paths", "bytes", len(body))

	enclosures, err := feed.Parse(bytes.NewReader(body), feedURI)

	if err != nil {
		return summary, fmt.Errorf("could not parse the feed %s: %w", feedURI, err)
	}

	for enclosure := range take(enclosures, count) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		a.logger.Info("Processing file", "url", enclosure.URL, "title", enclosure.Title)

		result := a.downloader.Download(ctx, enclosure)
		a.report(result)

		switch result.Status {
		case entity.StatusDownloaded:
			summary.Downloaded++
		case entity.StatusSkipped:
			summary.Skipped++
		case entity.StatusFailed:
			summary.Failed++

			if err := ctx.Err(); err != nil {
				return summary, err
			}
		}
	}

	return summary, nil
}

func (a *Archiver) report(result entity.DownloadResult) {
	switch result.Status {
	case entity.StatusDownloaded:
		a.logger.Info("File downloaded",
			"url", result.Enclosure.URL,
			"path", result.Path,
			"bytes", result.Bytes)
	case entity.StatusSkipped:
		a.logger.Info("File already exists", "path", result.Path)
	case entity.StatusFailed:
		a.logger.Error("Could not download file",
			"url", result.Enclosure.URL,
			"path", result.Path,
			"error", result.Err)
	}
}

// take yields at most n values of seq
func take[T any](seq iter.Seq[T], n int) iter.Seq[T] {
	return func(yield func(T) bool) {
		if n <= 0 {
			return
		}

		taken := 0

		for v := range seq {
			if !yield(v) {
				return
			}

			taken++

			if taken == n {
				return
			}
		}
	}
}
