package feed

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/nDmitry/podarchive/internal/entity"
)

const (
	itemElement      = "item"
	enclosureElement = "enclosure"
	titleElement     = "title"
	urlAttr          = "url"
	typeAttr         = "type"
	lengthAttr       = "length"
)

var errNoRootElement = errors.New("document has no root element")

// Parse reads an XML feed and returns its enclosures in document order.
//
// Every item element is visited, however deep it is nested. An item contributes
// the url attribute of its first enclosure child, or nothing if either is
// missing. Relative URLs are resolved against base when base is an http(s) URL.
//
// The document is parsed eagerly so malformed XML is reported here. Items are
// walked lazily, and the sequence can be ranged over only once.
func Parse(r io.Reader, base *url.URL) (iter.Seq[entity.Enclosure], error) {
	doc, err := xmlquery.Parse(r)

	if err != nil {
		return nil, fmt.Errorf("could not parse feed XML: %w", err)
	}

	if firstElementChild(doc, "") == nil {
		return nil, fmt.Errorf("could not parse feed XML: %w", errNoRootElement)
	}

	consumed := false

	return func(yield func(entity.Enclosure) bool) {
		if consumed {
			return
		}

		consumed = true

		stack := []*xmlquery.Node{doc}

		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if isElement(node, itemElement) {
				if enclosure, ok := extractEnclosure(node, base); ok && !yield(enclosure) {
					return
				}
			}

			// Children are pushed last to first so they pop in document order
			for child := node.LastChild; child != nil; child = child.PrevSibling {
				if child.Type == xmlquery.ElementNode {
					stack = append(stack, child)
				}
			}
		}
	}, nil
}

func extractEnclosure(item *xmlquery.Node, base *url.URL) (entity.Enclosure, bool) {
	enclosureNode := firstElementChild(item, enclosureElement)

	if enclosureNode == nil {
		return entity.Enclosure{}, false
	}

	rawURL, ok := attr(enclosureNode, urlAttr)

	if !ok {
		return entity.Enclosure{}, false
	}

	enclosure := entity.Enclosure{
		URL: resolveURL(strings.TrimSpace(rawURL), base),
	}

	if title := firstElementChild(item, titleElement); title != nil {
		enclosure.Title = strings.TrimSpace(title.InnerText())
	}

	if mimeType, ok := attr(enclosureNode, typeAttr); ok {
		enclosure.Type = strings.TrimSpace(mimeType)
	}

	if length, ok := attr(enclosureNode, lengthAttr); ok {
		// Feeds often carry 0 or garbage here, so a bad value is just ignored
		if n, err := strconv.ParseInt(strings.TrimSpace(length), 10, 64); err == nil && n > 0 {
			enclosure.Length = n
		}
	}

	return enclosure, true
}

// resolveURL returns raw unchanged when it does not parse, leaving the error
// to the downloader so it fails a single item only.
func resolveURL(raw string, base *url.URL) string {
	if base == nil || (base.Scheme != "http" && base.Scheme != "https") {
		return raw
	}

	ref, err := url.Parse(raw)

	if err != nil || ref.IsAbs() || raw == "" {
		return raw
	}

	return base.ResolveReference(ref).String()
}

// isElement matches unprefixed elements by local name
func isElement(node *xmlquery.Node, name string) bool {
	return node.Type == xmlquery.ElementNode && node.Prefix == "" && node.Data == name
}

// firstElementChild returns the first direct child element called name, or
// the first child element at all when name is empty.
func firstElementChild(node *xmlquery.Node, name string) *xmlquery.Node {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}

		if name == "" || isElement(child, name) {
			return child
		}
	}

	return nil
}

// attr looks up an attribute without namespace prefix
func attr(node *xmlquery.Node, name string) (string, bool) {
	for _, a := range node.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}

	return "", false
}
