// Package client sends API calls described by request.Options and interprets the responses.
//
// Client is an immutable value, each With* method returns a modified copy.
// Client.Execute builds the request, sends it, follows redirects by navigating the Page,
// parses the JSON response and passes it through the callback.
// The verb methods Get, Head, Post, Put, Delete, Options and Patch are aliases of Execute.
//
// A failure never reaches the caller as an error, it is reported in the Outcome
// and, if the call has the Debug option, logged once.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	otelMetric "go.opentelemetry.io/otel/metric"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fetchkit/go-apirequest/pkg/client/trace"
	"github.com/fetchkit/go-apirequest/pkg/client/trace/otel"
	"github.com/fetchkit/go-apirequest/pkg/page"
	"github.com/fetchkit/go-apirequest/pkg/request"
)

const (
	DefaultUserAgent = "go-apirequest"
	// MaxRedirects is the maximum number of followed redirects, the same limit as in browsers.
	MaxRedirects = 20
)

// Page is the navigation target of the client.
// Relative endpoints are resolved against its location, redirects navigate it.
type Page interface {
	// Location returns the current location, nil means a blank page.
	Location() *url.URL
	// Navigate moves the page to the URL.
	Navigate(ctx context.Context, to *url.URL) error
}

// Client sends API calls, it is safe for concurrent use.
type Client struct {
	transport    http.RoundTripper
	header       http.Header
	page         Page
	logger       *zap.Logger
	traceFactory trace.Factory
}

// New creates new Client with a blank in-memory page.
func New() Client {
	window, _ := page.NewWindow("")
	c := Client{
		transport: DefaultTransport(),
		header:    make(http.Header),
		page:      window,
		logger:    zap.Must(zap.NewProduction()),
	}
	c.header.Set("User-Agent", DefaultUserAgent)
	c.header.Set("Accept-Encoding", "gzip, br")
	return c
}

// WithUserAgent returns a clone of the Client with user agent set.
func (c Client) WithUserAgent(v string) Client {
	c.header = c.header.Clone()
	c.header.Set("User-Agent", v)
	return c
}

// WithHeader returns a clone of the Client with common header set.
// Common headers are sent only if the call does not define the same header.
func (c Client) WithHeader(key, value string) Client {
	c.header = c.header.Clone()
	c.header.Set(key, value)
	return c
}

// WithHeaders returns a clone of the Client with common headers set.
func (c Client) WithHeaders(headers map[string]string) Client {
	c.header = c.header.Clone()
	for k, v := range headers {
		c.header.Set(k, v)
	}
	return c
}

// WithTransport returns a clone of the Client with a HTTP transport set.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil {
		panic(errors.New("transport cannot be nil"))
	}
	c.transport = transport
	return c
}

// WithPage returns a clone of the Client with the page set.
func (c Client) WithPage(p Page) Client {
	if p == nil {
		panic(errors.New("page cannot be nil"))
	}
	c.page = p
	return c
}

// WithLocation returns a clone of the Client with a new in-memory page at the location.
func (c Client) WithLocation(location string) Client {
	window, err := page.NewWindow(location)
	if err != nil {
		panic(err)
	}
	c.page = window
	return c
}

// WithLogger returns a clone of the Client with the logger of the debug diagnostics set.
func (c Client) WithLogger(logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
	return c
}

// AndTrace returns a clone of the Client with Trace hooks added.
// Hooks are invoked in the order of registration.
func (c Client) AndTrace(fn trace.Factory) Client {
	if fn == nil {
		return c
	}
	if c.traceFactory == nil {
		c.traceFactory = fn
		return c
	}

	oldFactory := c.traceFactory
	c.traceFactory = func(ctx context.Context, desc request.Descriptor) (context.Context, *trace.ClientTrace) {
		ctx, oldTrace := oldFactory(ctx, desc)
		ctx, newTrace := fn(ctx, desc)
		if newTrace == nil {
			return ctx, oldTrace
		}
		newTrace.Compose(oldTrace)
		return ctx, newTrace
	}
	return c
}

// WithTelemetry returns a clone of the Client with OpenTelemetry tracing and metrics added.
func (c Client) WithTelemetry(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...otel.Option) Client {
	return c.AndTrace(otel.NewTrace(tracerProvider, meterProvider, opts...))
}

// Location returns the current location of the page.
func (c Client) Location() *url.URL {
	if c.page == nil {
		return nil
	}
	return c.page.Location()
}

// send sends the request, redirects are followed.
// The redirect target is returned if at least one redirect has been followed.
func (c Client) send(t *trace.ClientTrace, req *http.Request) (res *http.Response, redirect *url.URL, err error) {
	// Common headers
	for k, values := range c.header {
		if len(req.Header.Values(k)) == 0 {
			req.Header[k] = append([]string(nil), values...)
		}
	}

	// Setup native client
	nativeClient := http.Client{
		Transport: roundTripper{trace: t, wrapped: c.transport}, // wrapped transport for trace
		CheckRedirect: func(next *http.Request, via []*http.Request) error {
			if len(via) > MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", MaxRedirects)
			}
			if t != nil && t.Redirected != nil {
				t.Redirected(via[len(via)-1].URL, next.URL)
			}
			redirect = next.URL
			return nil
		},
	}

	// Send request
	startedAt := time.Now()
	res, err = nativeClient.Do(req)
	if err != nil {
		return nil, nil, handleSendError(startedAt, req, err)
	}
	return res, redirect, nil
}

func handleSendError(startedAt time.Time, req *http.Request, err error) error {
	// Timeout
	var netErr net.Error
	if deadline, ok := req.Context().Deadline(); ok && errors.Is(err, context.DeadlineExceeded) {
		err = urlError(req, fmt.Errorf("timeout after %s", deadline.Sub(startedAt)))
	} else if errors.Is(err, context.Canceled) {
		err = urlError(req, fmt.Errorf("canceled after %s", time.Since(startedAt)))
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		err = urlError(req, fmt.Errorf("timeout after %s", time.Since(startedAt)))
	}

	// Url error, method and URL of the call are part of the Failure
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.URL == req.URL.String() {
			err = urlErr.Err
		} else {
			err = fmt.Errorf(`request %s "%s" failed: %w`, strings.ToUpper(urlErr.Op), urlErr.URL, urlErr.Err)
		}
	}

	return err
}

// roundTripper wraps a http.RoundTripper and adds trace hooks, it is called for each redirect.
type roundTripper struct {
	trace   *trace.ClientTrace
	wrapped http.RoundTripper
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Trace request start
	if rt.trace != nil && rt.trace.HTTPRequestStart != nil {
		rt.trace.HTTPRequestStart(req)
	}

	// Send
	res, err := rt.wrapped.RoundTrip(req)

	// Trace request done
	if rt.trace != nil && rt.trace.HTTPRequestDone != nil {
		rt.trace.HTTPRequestDone(res, err)
	}

	return res, err
}

func withClientTrace(ctx context.Context, t *trace.ClientTrace) context.Context {
	if t == nil {
		return ctx
	}
	return httptrace.WithClientTrace(ctx, &t.ClientTrace)
}

func urlError(req *http.Request, err error) *url.Error {
	return &url.Error{Op: req.Method, URL: req.URL.String(), Err: err}
}
