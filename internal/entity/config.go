package entity

import (
	"log/slog"
	"net/url"
	"time"
)

// Config holds the validated settings of a single archive run.
type Config struct {
	// FeedURI is the location of the RSS feed, absolute or relative
	FeedURI *url.URL

	// DestDir is an existing directory enclosures are saved into
	DestDir string

	// Count is the number of enclosures taken from the top of the feed
	Count int

	LogFormat string
	LogLevel  slog.Level
	UserAgent string

	// CacheAddr is the Redis address used to cache the feed body.
	// An empty value disables caching.
	CacheAddr string

	// CacheTTL is how long a fetched feed body stays cached
	// A value of 0 means no caching
	CacheTTL time.Duration
}
