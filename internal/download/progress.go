package download

import "io"

// progressReader counts the bytes read through it
type progressReader struct {
	io.Reader
	read int64
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.Reader.Read(p)
	pr.read += int64(n)
	return
}
