package entity

type DownloadStatus string

const (
	StatusDownloaded DownloadStatus = "downloaded"
	StatusSkipped    DownloadStatus = "skipped"
	StatusFailed     DownloadStatus = "failed"
)

// DownloadResult is the outcome of a single enclosure download attempt.
type DownloadResult struct {
	Enclosure Enclosure
	Status    DownloadStatus
	// Path of the local file. Set for every status once the file name is known.
	Path string
	// Bytes written to Path, only for StatusDownloaded.
	Bytes int64
	// Err explains a StatusFailed result.
	Err error
}

func (r DownloadResult) Failed() bool {
	return r.Status == StatusFailed
}
