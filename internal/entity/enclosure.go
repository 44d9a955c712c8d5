package entity

// Enclosure is a media file referenced by a feed item.
type Enclosure struct {
	// URL as found in the enclosure's url attribute, resolved against the feed URI.
	URL string
	// Title of the parent item, used for logging only.
	Title string
	// MIME type declared by the feed, e.g. audio/mpeg.
	Type string
	// Declared length in bytes, 0 if missing or malformed.
	Length int64
}
