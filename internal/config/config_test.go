package config_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nDmitry/podarchive/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name          string
		args          []string
		expectedField string
		expectedErr   string
	}{
		{
			name:          "Malformed URI",
			args:          []string{"-r", "::::", "-d", dir, "-n", "2"},
			expectedField: config.KeyRSSPath,
			expectedErr:   "rssPath is invalid",
		},
		{
			name:          "URI with spaces",
			args:          []string{"-r", "http://example.com/my feed.xml", "-d", dir, "-n", "2"},
			expectedField: config.KeyRSSPath,
			expectedErr:   "rssPath is invalid",
		},
		{
			name:          "HTTP URI without host",
			args:          []string{"-r", "http://", "-d", dir, "-n", "2"},
			expectedField: config.KeyRSSPath,
			expectedErr:   "rssPath is invalid",
		},
		{
			name:          "Missing URI",
			args:          []string{"-d", dir, "-n", "2"},
			expectedField: config.KeyRSSPath,
			expectedErr:   "rssPath is required",
		},
		{
			name:          "Destination does not exist",
			args:          []string{"-r", "http://example.com/feed.xml", "-d", filepath.Join(dir, "missing"), "-n", "2"},
			expectedField: config.KeyDestPath,
			expectedErr:   "destPath does not exist",
		},
		{
			name:          "Destination is a file",
			args:          []string{"-r", "http://example.com/feed.xml", "-d", file, "-n", "2"},
			expectedField: config.KeyDestPath,
			expectedErr:   "destPath does not exist",
		},
		{
			name:          "Count is not an integer",
			args:          []string{"-r", "http://example.com/feed.xml", "-d", dir, "-n", "abc"},
			expectedField: config.KeyLatestNumber,
			expectedErr:   "latestNumber is not an integer",
		},
		{
			name:          "Negative count",
			args:          []string{"-r", "http://example.com/feed.xml", "-d", dir, "-n", "-1"},
			expectedField: config.KeyLatestNumber,
			expectedErr:   "latestNumber must be non-negative",
		},
		{
			name:          "Invalid log format",
			args:          []string{"-r", "http://example.com/feed.xml", "-d", dir, "-n", "1", "--log-format", "xml"},
			expectedField: config.KeyLogFormat,
			expectedErr:   "log-format must be json or text",
		},
		{
			name:          "Invalid log level",
			args:          []string{"-r", "http://example.com/feed.xml", "-d", dir, "-n", "1", "--log-level", "loud"},
			expectedField: config.KeyLogLevel,
			expectedErr:   "log-level is invalid",
		},
		{
			name:          "Negative cache TTL",
			args:          []string{"-r", "http://example.com/feed.xml", "-d", dir, "-n", "1", "--cache-ttl", "-5"},
			expectedField: config.KeyCacheTTL,
			expectedErr:   "cache-ttl must be non-negative",
		},
		{
			name:          "Positional arguments",
			args:          []string{"-r", "http://example.com/feed.xml", "-d", dir, "-n", "1", "extra"},
			expectedField: "arguments",
			expectedErr:   "arguments are unexpected: extra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer

			cfg, err := config.Load(tt.args, &out)

			require.Error(t, err)

			if cfg != nil {
				assert.Nil(t, cfg.FeedURI, "a rejected config must not carry the feed")
				assert.Empty(t, cfg.DestDir)
			}

			var validationErr *config.ValidationError
			require.True(t, errors.As(err, &validationErr), "expected a ValidationError, got %v", err)
			assert.Equal(t, tt.expectedField, validationErr.Field)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestLoad_LogSettingsOnValidationError(t *testing.T) {
	cfg, err := config.Load([]string{
		"-r", "::::",
		"-d", t.TempDir(),
		"-n", "1",
		"--log-format", "text",
		"--log-level", "debug",
	}, &bytes.Buffer{})

	var validationErr *config.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, config.KeyRSSPath, validationErr.Field)

	require.NotNil(t, cfg)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Nil(t, cfg.FeedURI)
}

func TestLoad_Valid(t *testing.T) {
	dir := t.TempDir()

	t.Run("Short flags", func(t *testing.T) {
		cfg, err := config.Load([]string{"-r", "https://example.com/feed.xml", "-d", dir, "-n", "3"}, &bytes.Buffer{})

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/feed.xml", cfg.FeedURI.String())
		assert.Equal(t, dir, cfg.DestDir)
		assert.Equal(t, 3, cfg.Count)
		assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, config.DefaultUserAgent, cfg.UserAgent)
		assert.Empty(t, cfg.CacheAddr)
		assert.Zero(t, cfg.CacheTTL)
	})

	t.Run("Long flags and relative URI", func(t *testing.T) {
		cfg, err := config.Load([]string{
			"--rssPath", "feeds/podcast.xml",
			"--destPath", dir,
			"--latestNumber", "0",
			"--log-level", "debug",
			"--log-format", "text",
			"--cache-addr", "localhost:6379",
			"--cache-ttl", "15",
		}, &bytes.Buffer{})

		require.NoError(t, err)
		assert.Equal(t, "feeds/podcast.xml", cfg.FeedURI.String())
		assert.Empty(t, cfg.FeedURI.Scheme)
		assert.Equal(t, 0, cfg.Count)
		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "localhost:6379", cfg.CacheAddr)
		assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv("PODARCHIVE_RSSPATH", "https://example.com/env.xml")
		t.Setenv("PODARCHIVE_LATESTNUMBER", "7")
		t.Setenv("PODARCHIVE_LOG_LEVEL", "warn")

		cfg, err := config.Load([]string{"-d", dir}, &bytes.Buffer{})

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/env.xml", cfg.FeedURI.String())
		assert.Equal(t, 7, cfg.Count)
		assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	})

	t.Run("Flags override environment", func(t *testing.T) {
		t.Setenv("PODARCHIVE_LATESTNUMBER", "7")

		cfg, err := config.Load([]string{"-r", "https://example.com/feed.xml", "-d", dir, "-n", "2"}, &bytes.Buffer{})

		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Count)
	})

	t.Run("Config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "podarchive.yaml")
		contents := "rssPath: https://example.com/file.xml\n" +
			"destPath: " + dir + "\n" +
			"latestNumber: \"4\"\n" +
			"log-format: text\n"
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

		cfg, err := config.Load([]string{"--config", path}, &bytes.Buffer{})

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/file.xml", cfg.FeedURI.String())
		assert.Equal(t, 4, cfg.Count)
		assert.Equal(t, "text", cfg.LogFormat)
	})
}

func TestLoad_Help(t *testing.T) {
	for _, arg := range []string{"-h", "--help"} {
		t.Run(arg, func(t *testing.T) {
			var out bytes.Buffer

			cfg, err := config.Load([]string{arg}, &out)

			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, config.ErrHelp)
			assert.Contains(t, out.String(), "Usage: podarchive")
			assert.Contains(t, out.String(), "--rssPath")
			assert.Contains(t, out.String(), "--destPath")
			assert.Contains(t, out.String(), "--latestNumber")
		})
	}
}

func TestParseFeedURI(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
	}{
		{raw: "https://example.com/feed.xml", valid: true},
		{raw: "http://example.com/feed?format=rss", valid: true},
		{raw: "feed.xml", valid: true},
		{raw: "../feeds/feed.xml", valid: true},
		{raw: "file:///tmp/feed.xml", valid: true},
		{raw: "::::", valid: false},
		{raw: "", valid: false},
		{raw: "http://exa mple.com", valid: false},
		{raw: "https://", valid: false},
		{raw: "http://example.com/%zz", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := config.ParseFeedURI(tt.raw)

			if tt.valid {
				require.NoError(t, err)
				assert.NotNil(t, u)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
