// Package counter provides a response body wrapper which counts the raw bytes read.
package counter

import (
	"errors"
	"io"
)

// ReadCloser wraps a raw response body to count bytes read from the network.
// The OnClose callback is invoked once, on the first Close call.
type ReadCloser struct {
	wrapped  io.ReadCloser
	onClose  OnClose
	bytes    int64
	readErr  error
	closed   bool
	closeErr error
}

// OnClose receives the number of bytes read and the first read error, or the close error.
type OnClose func(bytes int64, err error)

func NewReadCloser(wrapped io.ReadCloser, onClose OnClose) *ReadCloser {
	return &ReadCloser{wrapped: wrapped, onClose: onClose}
}

// Bytes returns number of bytes read so far.
func (w *ReadCloser) Bytes() int64 {
	return w.bytes
}

// Err returns the read error, io.EOF is not an error.
func (w *ReadCloser) Err() error {
	if errors.Is(w.readErr, io.EOF) {
		return nil
	}
	return w.readErr
}

func (w *ReadCloser) Read(b []byte) (int, error) {
	n, err := w.wrapped.Read(b)
	w.bytes += int64(n)
	if err != nil && w.readErr == nil {
		w.readErr = err
	}
	return n, err
}

// Close closes the wrapped body, repeated calls return the first result.
func (w *ReadCloser) Close() error {
	if w.closed {
		return w.closeErr
	}
	w.closed = true
	w.closeErr = w.wrapped.Close()
	if w.onClose != nil {
		// Read error has priority over the close error, it is usually more useful
		onCloseErr := w.Err()
		if onCloseErr == nil {
			onCloseErr = w.closeErr
		}
		w.onClose(w.bytes, onCloseErr)
	}
	return w.closeErr
}
