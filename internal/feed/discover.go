package feed

import (
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var feedLinkTypes = map[string]bool{
	"application/rss+xml": true,
	"application/rdf+xml": true,
}

// DiscoverFeedURL finds the first RSS alternate link of an HTML page and
// resolves it against the page URL. It returns "" if the page has none.
func DiscoverFeedURL(page io.Reader, pageURL *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(page)

	if err != nil {
		return "", fmt.Errorf("could not parse HTML page %s: %w", pageURL, err)
	}

	var found string

	doc.Find(`link[rel~="alternate"][href]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		linkType := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))

		if !feedLinkTypes[linkType] {
			return true
		}

		href, err := url.Parse(strings.TrimSpace(s.AttrOr("href", "")))

		if err != nil || href.String() == "" {
			return true
		}

		found = pageURL.ResolveReference(href).String()

		return false
	})

	return found, nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)

	if err != nil {
		return false
	}

	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
