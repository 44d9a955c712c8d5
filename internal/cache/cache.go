package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not found in the cache
var ErrCacheMiss = errors.New("cache miss")

const feedKeyPrefix = "podarchive:feed:"

// Cache stores fetched feed bodies between runs
type Cache interface {
	// Get retrieves a value, returning ErrCacheMiss if the key is absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with expiration
	// If ttl is 0, the value will not be cached
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases any resources used by the cache
	Close() error
}

// FeedKey builds the cache key of a feed body
func FeedKey(feedURI string) string {
	return feedKeyPrefix + feedURI
}
