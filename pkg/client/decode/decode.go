// Package decode unwraps the Content-Encoding of a response body.
package decode

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// Decode returns a reader of the decoded body, "gzip" and "br" encodings are supported.
// Other encodings are returned unchanged.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	contentEncoding = strings.ToLower(strings.TrimSpace(contentEncoding))
	switch contentEncoding {
	case "gzip":
		v, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("cannot decode gzip: %w", err)
		}
		return readCloser{Reader: v, closers: []io.Closer{v, body}}, nil
	case "br":
		return readCloser{Reader: brotli.NewReader(body), closers: []io.Closer{body}}, nil
	default:
		return body, nil
	}
}

// readCloser closes the decoder and the underlying body.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r readCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
