package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nDmitry/podarchive/internal/entity"
)

var ErrNoFileName = errors.New("URL has no file name")

// Downloader saves enclosures into a destination directory
type Downloader struct {
	client  *http.Client
	destDir string
	logger  *slog.Logger
}

func New(client *http.Client, destDir string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:  client,
		destDir: destDir,
		logger:  logger,
	}
}

// Download fetches a single enclosure unless a file with the same name is
// already in the destination directory. Existing files are never touched, and
// a file left behind by a failed download is removed.
func (d *Downloader) Download(ctx context.Context, enclosure entity.Enclosure) entity.DownloadResult {
	result := entity.DownloadResult{Enclosure: enclosure}

	u, err := url.Parse(enclosure.URL)

	if err != nil {
		return failed(result, fmt.Errorf("could not parse enclosure URL %q: %w", enclosure.URL, err))
	}

	name, err := FileName(u)

	if err != nil {
		return failed(result, fmt.Errorf("could not get a file name from %s: %w", enclosure.URL, err))
	}

	result.Path = filepath.Join(d.destDir, name)

	if _, err := os.Stat(result.Path); err == nil {
		result.Status = entity.StatusSkipped
		return result
	} else if !errors.Is(err, fs.ErrNotExist) {
		return failed(result, fmt.Errorf("could not check %s: %w", result.Path, err))
	}

	if result.Bytes, err = d.save(ctx, u, result.Path); err != nil {
		return failed(result, err)
	}

	result.Status = entity.StatusDownloaded

	return result
}

func (d *Downloader) save(ctx context.Context, u *url.URL, path string) (written int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)

	if err != nil {
		return 0, fmt.Errorf("could not create a request for %s: %w", u, err)
	}

	// nolint: gosec
	res, err := d.client.Do(req)

	if err != nil {
		return 0, fmt.Errorf("could not download %s: %w", u, err)
	}

	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return 0, fmt.Errorf("could not download %s: unexpected status %s", u, res.Status)
	}

	// O_EXCL keeps a file created since the existence check from being overwritten
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)

	if err != nil {
		return 0, fmt.Errorf("could not create %s: %w", path, err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("could not close %s: %w", path, closeErr)
		}

		if err != nil {
			if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
				d.logger.Error("Could not remove partially downloaded file",
					"path", path,
					"error", removeErr)
			}
		}
	}()

	d.logger.Debug("Saving file", "url", u.String(), "path", path, "content_length", res.ContentLength)

	counter := &progressReader{Reader: res.Body}

	if _, err = io.Copy(file, counter); err != nil {
		return counter.read, fmt.Errorf("could not save %s into %s: %w", u, path, err)
	}

	return counter.read, nil
}

// FileName returns the last unescaped segment of the URL path.
func FileName(u *url.URL) (string, error) {
	escaped := u.EscapedPath()
	segment := escaped[strings.LastIndex(escaped, "/")+1:]

	name, err := url.PathUnescape(segment)

	if err != nil {
		return "", err
	}

	switch {
	case name == "", name == ".", name == "..":
		return "", ErrNoFileName
	case strings.ContainsAny(name, "/\\\x00"):
		return "", fmt.Errorf("file name %q contains a path separator", name)
	}

	return name, nil
}

func failed(result entity.DownloadResult, err error) entity.DownloadResult {
	result.Status = entity.StatusFailed
	result.Err = err
	return result
}
