package feed

import (
	"context"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
)

var httpTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}).DialContext,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	DisableCompression:  false,
}

// NewHTTPClient returns the client shared by the feed fetcher and the downloader.
// There is no overall timeout: an enclosure may take a long time to stream.
func NewHTTPClient(logger *slog.Logger, userAgent string) *http.Client {
	return &http.Client{
		Transport: &loggingTransport{
			next:      httpTransport,
			logger:    logger,
			userAgent: userAgent,
		},
	}
}

// loggingTransport logs every outgoing request and sets the default User-Agent
type loggingTransport struct {
	next      http.RoundTripper
	logger    *slog.Logger
	userAgent string
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.userAgent != "" && r.Header.Get("User-Agent") == "" {
		r = r.Clone(r.Context())
		r.Header.Set("User-Agent", t.userAgent)
	}

	start := time.Now()

	t.logger.Debug("HTTP request",
		"method", r.Method,
		"url", r.URL.String(),
		"user_agent", r.UserAgent(),
	)

	res, err := t.next.RoundTrip(r)

	if err != nil {
		t.logger.Debug("HTTP request failed",
			"method", r.Method,
			"url", r.URL.String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)

		return nil, err
	}

	t.logger.Debug("HTTP response",
		"method", r.Method,
		"url", r.URL.String(),
		"status", res.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"content_length", res.ContentLength,
	)

	return res, nil
}

// contextTransport binds requests issued by a colly collector to ctx and keeps
// colly from converting non-HTML bodies to UTF-8.
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t *contextTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	res, err := t.next.RoundTrip(r.WithContext(t.ctx))

	if err != nil {
		return nil, err
	}

	dropCharset(res.Header)

	return res, nil
}

// dropCharset removes the charset parameter from a non-HTML Content-Type.
// An XML feed names its encoding in its own declaration and the parser
// decodes it from there, so the body must reach it untouched.
func dropCharset(h http.Header) {
	contentType := h.Get("Content-Type")

	if contentType == "" || isHTML(contentType) {
		return
	}

	mediaType, params, err := mime.ParseMediaType(contentType)

	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		h.Set("Content-Type", strings.TrimSpace(mediaType))

		return
	}

	if _, ok := params["charset"]; !ok {
		return
	}

	delete(params, "charset")
	h.Set("Content-Type", mime.FormatMediaType(mediaType, params))
}
