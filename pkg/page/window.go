// Package page provides navigation targets for the redirects followed by the client.
//
// Window is an in-memory page, Browser drives a headless Chrome tab.
// Both are safe for concurrent use.
package page

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// Window is an in-memory page, it remembers its location and the navigation history.
type Window struct {
	lock     sync.RWMutex
	location *url.URL
	history  []*url.URL
}

// NewWindow creates a Window at the location, an empty location means a blank page.
func NewWindow(location string) (*Window, error) {
	w := &Window{}
	if location == "" {
		return w, nil
	}
	u, err := parseLocation(location)
	if err != nil {
		return nil, err
	}
	w.location = u
	return w, nil
}

// Location returns a copy of the current location, or nil for a blank page.
func (w *Window) Location() *url.URL {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return cloneURL(w.location)
}

// Navigate sets the location and records the target in the history.
func (w *Window) Navigate(ctx context.Context, to *url.URL) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == nil || !to.IsAbs() {
		return fmt.Errorf(`cannot navigate to "%s": absolute URL expected`, to)
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	w.location = cloneURL(to)
	w.history = append(w.history, cloneURL(to))
	return nil
}

// History returns all navigation targets in order.
func (w *Window) History() []*url.URL {
	w.lock.RLock()
	defer w.lock.RUnlock()
	out := make([]*url.URL, len(w.history))
	for i, u := range w.history {
		out[i] = cloneURL(u)
	}
	return out
}

func parseLocation(location string) (*url.URL, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf(`location "%s" is not valid: %w`, location, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf(`location "%s" is not absolute`, location)
	}
	return u, nil
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	out := *u
	if u.User != nil {
		user := *u.User
		out.User = &user
	}
	return &out
}
