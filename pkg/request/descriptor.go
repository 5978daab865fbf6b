package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	HeaderRequestedWith      = "X-Requested-With"
	HeaderRequestedWithValue = "XMLHttpRequest"
	HeaderContentType        = "Content-Type"
)

// Descriptor is a fully resolved request: method, absolute URL, headers and body.
// Body is nil for GET and HEAD.
type Descriptor struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Build resolves the options against the page location and serializes the payload.
// Location may be nil, then the endpoint must be absolute.
func Build(opts Options, location *url.URL) (Descriptor, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return Descriptor{}, err
	}

	reqURL, err := resolveEndpoint(opts.Endpoint, location)
	if err != nil {
		return Descriptor{}, err
	}

	// Caller headers are kept, forced headers are appended
	header := opts.Headers.Clone()
	header.Add(HeaderRequestedWith, HeaderRequestedWithValue)
	header.Add(HeaderContentType, opts.Payload.ContentType())

	out := Descriptor{Method: opts.Verb.String(), URL: reqURL, Header: header}
	if opts.Verb.InQuery() {
		// The payload replaces the query string of the endpoint
		query, err := opts.Payload.Query()
		if err != nil {
			return Descriptor{}, err
		}
		out.URL.RawQuery = query
		out.URL.ForceQuery = false
	} else {
		body, err := opts.Payload.Body()
		if err != nil {
			return Descriptor{}, err
		}
		out.Body = body
	}

	return out, nil
}

// NewHTTPRequest creates the standard HTTP request.
// GetBody is set, so the body can be sent again on a 307/308 redirect.
func (d Descriptor) NewHTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, d.URL.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header = d.Header.Clone()
	if d.Body != nil {
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(d.Body)), nil
		}
	}

	return req, nil
}

func resolveEndpoint(endpoint string, location *url.URL) (*url.URL, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf(`endpoint "%s" is not valid: %w`, endpoint, err)
	}

	var out *url.URL
	switch {
	case ref.IsAbs():
		out = ref
	case location != nil && location.IsAbs():
		out = location.ResolveReference(ref)
	default:
		return nil, fmt.Errorf(`endpoint "%s" is relative and the page location is not set`, endpoint)
	}

	if out.Host == "" {
		return nil, fmt.Errorf(`endpoint "%s" has no host`, out.String())
	}

	// Fragment is never sent
	out.Fragment = ""
	out.RawFragment = ""
	return out, nil
}
