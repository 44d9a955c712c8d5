package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/nDmitry/podarchive/internal/cache"
)

const maxFeedSize = 50 << 20

// ErrFeedTooLarge is returned when a remote feed reaches the size limit
var ErrFeedTooLarge = errors.New("feed is too large")

// Fetcher downloads the raw feed document
type Fetcher struct {
	transport http.RoundTripper
	userAgent string
	logger    *slog.Logger
	cache     cache.Cache
	cacheTTL  time.Duration
	maxSize   int
}

type FetcherOption func(*Fetcher)

// WithMaxFeedSize overrides the 50 MiB limit on remote feed bodies.
func WithMaxFeedSize(n int) FetcherOption {
	return func(f *Fetcher) {
		f.maxSize = n
	}
}

// WithCache enables caching of fetched feed bodies for ttl.
func WithCache(c cache.Cache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

func NewFetcher(client *http.Client, userAgent string, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	transport := client.Transport

	if transport == nil {
		transport = http.DefaultTransport
	}

	f := &Fetcher{
		transport: transport,
		userAgent: userAgent,
		logger:    logger,
		maxSize:   maxFeedSize,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch returns the feed body. http and https URIs are requested once, with a
// single extra request if the response is an HTML page advertising an RSS
// alternate link. URIs without a scheme and file URIs are read from disk.
func (f *Fetcher) Fetch(ctx context.Context, feedURI *url.URL) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch feedURI.Scheme {
	case "", "file":
		if feedURI.Host != "" && feedURI.Scheme == "" {
			// Scheme-relative reference, e.g. //example.com/feed.xml
			remote := *feedURI
			remote.Scheme = "https"

			return f.fetchRemote(ctx, &remote)
		}

		return readLocal(feedURI)
	case "http", "https":
		return f.fetchRemote(ctx, feedURI)
	default:
		return nil, fmt.Errorf("unsupported feed URI scheme %q", feedURI.Scheme)
	}
}

func (f *Fetcher) fetchRemote(ctx context.Context, feedURI *url.URL) ([]byte, error) {
	useCache := f.cache != nil && f.cacheTTL > 0
	cacheKey := cache.FeedKey(feedURI.String())

	if useCache {
		cached, err := f.cache.Get(ctx, cacheKey)

		if err == nil {
			f.logger.Info("Feed loaded from cache", "feed", feedURI.String())
			return cached, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			f.logger.Error("Cache error", "error", err)
		}
	}

	f.logger.Info("Downloading rss feed", "feed", feedURI.String())

	page, err := f.visit(ctx, feedURI)

	if err != nil {
		return nil, err
	}

	body := page.body

	if isHTML(page.contentType) {
		alternate, err := DiscoverFeedURL(bytes.NewReader(page.body), page.url)

		if err != nil {
			return nil, err
		}

		if alternate != "" {
			f.logger.Info("Following feed link found in HTML page", "page", page.url.String(), "feed", alternate)

			alternateURL, err := url.Parse(alternate)

			if err != nil {
				return nil, fmt.Errorf("could not parse discovered feed URL %s: %w", alternate, err)
			}

			if page, err = f.visit(ctx, alternateURL); err != nil {
				return nil, err
			}

			body = page.body
		}
	}

	if useCache {
		// Use background context for caching to avoid cancellation
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := f.cache.Set(cacheCtx, cacheKey, body, f.cacheTTL); err != nil {
			f.logger.Error("Failed to cache feed", "error", err)
		}
	}

	return body, nil
}

type fetchedPage struct {
	url         *url.URL
	contentType string
	body        []byte
}

func (f *Fetcher) visit(ctx context.Context, target *url.URL) (*fetchedPage, error) {
	var page *fetchedPage
	var status int

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.MaxBodySize(f.maxSize),
		colly.AllowURLRevisit(),
	)

	c.WithTransport(&contextTransport{ctx: ctx, next: f.transport})

	c.OnResponse(func(r *colly.Response) {
		page = &fetchedPage{
			url:         r.Request.URL,
			contentType: r.Headers.Get("Content-Type"),
			body:        r.Body,
		}
	})

	c.OnError(func(r *colly.Response, _ error) {
		status = r.StatusCode
	})

	if err := c.Visit(target.String()); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if status != 0 {
			return nil, fmt.Errorf("could not visit %s: status %d: %w", target, status, err)
		}

		return nil, fmt.Errorf("could not visit %s: %w", target, err)
	}

	if page == nil {
		return nil, fmt.Errorf("could not visit %s: empty response", target)
	}

	// Colly cuts the body at the limit without reporting it
	if f.maxSize > 0 && len(page.body) >= f.maxSize {
		return nil, fmt.Errorf("could not visit %s: %w: limit is %d bytes", target, ErrFeedTooLarge, f.maxSize)
	}

	return page, nil
}

func readLocal(feedURI *url.URL) ([]byte, error) {
	path := feedURI.Path

	if path == "" {
		path = feedURI.Opaque
	}

	body, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("could not read feed file %s: %w", path, err)
	}

	return body, nil
}
