package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/nDmitry/podarchive/internal/app"
	"github.com/nDmitry/podarchive/internal/entity"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	KeyRSSPath      = "rssPath"
	KeyDestPath     = "destPath"
	KeyLatestNumber = "latestNumber"
	KeyConfig       = "config"
	KeyLogLevel     = "log-level"
	KeyLogFormat    = "log-format"
	KeyUserAgent    = "user-agent"
	KeyCacheAddr    = "cache-addr"
	KeyCacheTTL     = "cache-ttl"
)

const (
	EnvPrefix        = "PODARCHIVE"
	DefaultUserAgent = "podarchive/1.0 (+https://github.com/nDmitry/podarchive)"
)

// ErrHelp is returned by Load when usage was requested and printed
var ErrHelp = pflag.ErrHelp

// ValidationError reports a single invalid input
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Field, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Load parses command line arguments, PODARCHIVE_* environment variables and an
// optional YAML config file, in that order of precedence, and validates the result.
// Usage and parse errors are written to out. A *ValidationError may come with a
// partial Config holding the log settings only.
func Load(args []string, out io.Writer) (*entity.Config, error) {
	fs := newFlagSet(out)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() > 0 {
		return nil, &ValidationError{Field: "arguments", Reason: fmt.Sprintf("are unexpected: %s", strings.Join(fs.Args(), " "))}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("could not bind flags: %w", err)
	}

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, &ValidationError{Field: KeyConfig, Reason: "could not be read", Err: err}
		}
	}

	return fromViper(v)
}

func newFlagSet(out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("podarchive", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.SortFlags = false

	fs.StringP(KeyRSSPath, "r", "", "Rss file path (absolute or relative URI)")
	fs.StringP(KeyDestPath, "d", "", "Local destination path, must exist")
	fs.StringP(KeyLatestNumber, "n", "", "Number of latest podcasts")
	fs.String(KeyConfig, "", "Optional YAML config file")
	fs.String(KeyLogLevel, "info", "Log level: debug, info, warn or error")
	fs.String(KeyLogFormat, app.LogFormatJSON, "Log format: json or text")
	fs.String(KeyUserAgent, DefaultUserAgent, "User-Agent header sent with every request")
	fs.String(KeyCacheAddr, "", "Redis address used to cache the feed, e.g. localhost:6379")
	fs.Int(KeyCacheTTL, 0, "Feed cache TTL in minutes, 0 disables caching")

	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: podarchive -r <rss uri> -d <dir> -n <count> [options]\n\n")
		fs.PrintDefaults()
	}

	return fs
}

// fromViper validates the log settings first. When a later key is invalid the
// returned Config carries only those settings, so the error can be logged in
// the requested format.
//
// nolint: cyclop
func fromViper(v *viper.Viper) (*entity.Config, error) {
	logging := &entity.Config{}

	if err := logging.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return nil, &ValidationError{Field: KeyLogLevel, Reason: "is invalid", Err: err}
	}

	switch logging.LogFormat = v.GetString(KeyLogFormat); logging.LogFormat {
	case app.LogFormatJSON, app.LogFormatText:
	default:
		return nil, &ValidationError{Field: KeyLogFormat, Reason: fmt.Sprintf("must be %s or %s", app.LogFormatJSON, app.LogFormatText)}
	}

	cfg := &entity.Config{
		LogLevel:  logging.LogLevel,
		LogFormat: logging.LogFormat,
		UserAgent: v.GetString(KeyUserAgent),
		CacheAddr: v.GetString(KeyCacheAddr),
	}

	rssPath := v.GetString(KeyRSSPath)

	if rssPath == "" {
		return logging, &ValidationError{Field: KeyRSSPath, Reason: "is required"}
	}

	feedURI, err := ParseFeedURI(rssPath)

	if err != nil {
		return logging, &ValidationError{Field: KeyRSSPath, Reason: "is invalid", Err: err}
	}

	cfg.FeedURI = feedURI

	destPath := v.GetString(KeyDestPath)

	if destPath == "" {
		return logging, &ValidationError{Field: KeyDestPath, Reason: "is required"}
	}

	if info, err := os.Stat(destPath); err != nil || !info.IsDir() {
		return logging, &ValidationError{Field: KeyDestPath, Reason: "does not exist"}
	}

	cfg.DestDir = destPath

	latest := v.GetString(KeyLatestNumber)

	if latest == "" {
		return logging, &ValidationError{Field: KeyLatestNumber, Reason: "is required"}
	}

	if cfg.Count, err = strconv.Atoi(latest); err != nil {
		return logging, &ValidationError{Field: KeyLatestNumber, Reason: "is not an integer"}
	}

	if cfg.Count < 0 {
		return logging, &ValidationError{Field: KeyLatestNumber, Reason: "must be non-negative"}
	}

	ttl, err := strconv.Atoi(v.GetString(KeyCacheTTL))

	if err != nil {
		return logging, &ValidationError{Field: KeyCacheTTL, Reason: "is not an integer"}
	}

	if ttl < 0 {
		return logging, &ValidationError{Field: KeyCacheTTL, Reason: "must be non-negative"}
	}

	cfg.CacheTTL = time.Duration(ttl) * time.Minute

	return cfg, nil
}

// ParseFeedURI accepts a well-formed absolute or relative URI.
func ParseFeedURI(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("empty URI")
	}

	if strings.IndexFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return nil, errors.New("URI contains unescaped whitespace or control characters")
	}

	u, err := url.Parse(raw)

	if err != nil {
		return nil, err
	}

	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return nil, fmt.Errorf("missing host in %s URI", u.Scheme)
	}

	return u, nil
}
