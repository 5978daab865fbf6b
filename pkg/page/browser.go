package page

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const blankLocation = "about:blank"

// Browser is a page backed by a headless Chrome tab.
// Navigate loads the target in the tab, the location is read back from the tab,
// so client side redirects are reflected.
type Browser struct {
	tabCtx   context.Context
	cancel   context.CancelFunc
	lock     sync.Mutex
	location *url.URL
}

// NewBrowser starts a headless Chrome and opens a tab at the location.
// The options are appended to chromedp.DefaultExecAllocatorOptions.
func NewBrowser(ctx context.Context, location string, opts ...chromedp.ExecAllocatorOption) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], opts...)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		tabCtx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	// Run without actions starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		b.cancel()
		return nil, fmt.Errorf("cannot start browser: %w", err)
	}

	if location != "" {
		u, err := parseLocation(location)
		if err != nil {
			b.cancel()
			return nil, err
		}
		if err := b.Navigate(ctx, u); err != nil {
			b.cancel()
			return nil, err
		}
	}

	return b, nil
}

// Location returns the location of the tab after the last navigation.
func (b *Browser) Location() *url.URL {
	b.lock.Lock()
	defer b.lock.Unlock()
	return cloneURL(b.location)
}

// Navigate loads the URL in the tab, the navigation is aborted if ctx is done.
func (b *Browser) Navigate(ctx context.Context, to *url.URL) error {
	if to == nil || !to.IsAbs() {
		return fmt.Errorf(`cannot navigate to "%s": absolute URL expected`, to)
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	runCtx, cancel := context.WithCancel(b.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var current string
	if err := chromedp.Run(runCtx, chromedp.Navigate(to.String()), chromedp.Location(&current)); err != nil {
		return fmt.Errorf(`cannot navigate to "%s": %w`, to, err)
	}

	u, err := url.Parse(current)
	if err != nil {
		return fmt.Errorf(`browser location "%s" is not valid: %w`, current, err)
	}
	b.location = u
	return nil
}

// History returns the navigation history of the tab, the oldest first.
// The initial blank page is omitted.
func (b *Browser) History(ctx context.Context) ([]*url.URL, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	runCtx, cancel := context.WithCancel(b.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var entries []*cdppage.NavigationEntry
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) (err error) {
		_, entries, err = cdppage.GetNavigationHistory().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("cannot get navigation history: %w", err)
	}

	out := make([]*url.URL, 0, len(entries))
	for _, entry := range entries {
		if entry.URL == blankLocation {
			continue
		}
		u, err := url.Parse(entry.URL)
		if err != nil {
			return nil, fmt.Errorf(`history entry "%s" is not valid: %w`, entry.URL, err)
		}
		out = append(out, u)
	}
	return out, nil
}

// Close closes the tab and stops the browser.
func (b *Browser) Close() error {
	b.cancel()
	return nil
}
