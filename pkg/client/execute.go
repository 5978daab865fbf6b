package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/fetchkit/go-apirequest/pkg/client/counter"
	"github.com/fetchkit/go-apirequest/pkg/client/decode"
	"github.com/fetchkit/go-apirequest/pkg/client/trace"
	"github.com/fetchkit/go-apirequest/pkg/request"
)

// DebugMessage is the message of the diagnostic log entry of a failed call.
const DebugMessage = "Something went wrong."

// Outcome is the result of one call.
//
// A successful call has the callback result in the Value, it may be nil, e.g. for the JSON null.
// A redirected call has the Redirect set and no Value.
// A failed call has the Failure set and no Value.
type Outcome struct {
	Value    any
	Status   int
	Redirect *url.URL
	Failure  *request.Failure
}

// Failed returns true if the call failed.
func (o Outcome) Failed() bool {
	return o.Failure != nil
}

// Redirected returns true if the response was redirected and the page was navigated.
func (o Outcome) Redirected() bool {
	return o.Redirect != nil
}

// Err returns the Failure as error, or nil.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// Execute sends the call described by the options.
//
// The endpoint is resolved against the page location.
// If the response was redirected, the page is navigated to the final URL and the callback is not called.
// Otherwise, a 2xx response body is parsed as JSON and passed through the callback.
// Any failure caused by the call is returned in the Outcome, Execute never panics on caller input.
// Calling it on a zero-value Client is a programming error and panics.
func (c Client) Execute(ctx context.Context, opts request.Options) (out Outcome) {
	// Method cannot be called on an empty value
	if c.transport == nil {
		panic(fmt.Errorf("client value is not initialized"))
	}

	opts = opts.WithDefaults()
	desc, buildErr := request.Build(opts, c.Location())
	if buildErr != nil {
		desc = request.Descriptor{Method: opts.Verb.String()}
	}

	// Init trace
	var t *trace.ClientTrace
	if c.traceFactory != nil {
		ctx, t = c.traceFactory(ctx, desc)
		ctx = withClientTrace(ctx, t)
	}

	// Trace request processed
	if t != nil && t.RequestProcessed != nil {
		defer func() {
			t.RequestProcessed(out.Value, out.Err())
		}()
	}

	if buildErr != nil {
		out = Outcome{Failure: request.NewFailure(request.FailureRequest, desc, buildErr)}
	} else {
		out = c.execute(ctx, t, opts, desc)
	}

	if out.Failure != nil && opts.Debug {
		c.logFailure(out)
	}

	return out
}

func (c Client) execute(ctx context.Context, t *trace.ClientTrace, opts request.Options, desc request.Descriptor) Outcome {
	req, err := desc.NewHTTPRequest(ctx)
	if err != nil {
		return Outcome{Failure: request.NewFailure(request.FailureRequest, desc, err)}
	}

	res, redirect, err := c.send(t, req)
	if err != nil {
		return Outcome{Failure: request.NewFailure(request.FailureTransport, desc, err)}
	}

	// Redirect: navigate the page, the body is ignored
	if redirect != nil {
		discardBody(res)
		out := Outcome{Status: res.StatusCode, Redirect: redirect}
		err := c.page.Navigate(ctx, redirect)
		if t != nil && t.Navigated != nil {
			t.Navigated(redirect, err)
		}
		if err != nil {
			out.Failure = request.NewFailure(request.FailureNavigation, desc, err)
		}
		return out
	}

	// Unexpected status
	if !isSuccessStatus(res.StatusCode) {
		body, _, _ := readBody(res)
		return Outcome{
			Status:  res.StatusCode,
			Failure: request.NewFailure(request.FailureResponse, desc, &request.ResponseError{Response: res, Body: body}),
		}
	}

	// Parse JSON
	if t != nil && t.BodyParseStart != nil {
		t.BodyParseStart(res)
	}
	body, readBytes, err := readBody(res)
	var parsed any
	if err == nil {
		parsed, err = parseJSON(body, res.Header.Get("Content-Type"))
	}
	if t != nil && t.BodyParseDone != nil {
		t.BodyParseDone(res, readBytes, err)
	}
	if err != nil {
		return Outcome{Status: res.StatusCode, Failure: request.NewFailure(request.FailureParse, desc, err)}
	}

	// Map result
	result, err := invokeCallback(opts.Callback, parsed)
	if err != nil {
		return Outcome{Status: res.StatusCode, Failure: request.NewFailure(request.FailureCallback, desc, err)}
	}

	return Outcome{Value: result, Status: res.StatusCode}
}

func (c Client) logFailure(out Outcome) {
	f := out.Failure
	fields := []zap.Field{
		zap.Error(f),
		zap.String("failure.kind", string(f.Kind)),
		zap.String("http.method", f.Method),
		zap.String("http.url", f.URL),
	}
	if out.Status > 0 {
		fields = append(fields, zap.Int("http.status", out.Status))
	}
	if out.Redirect != nil {
		fields = append(fields, zap.String("http.redirect", out.Redirect.String()))
	}
	c.logger.Warn(DebugMessage, fields...)
}

func invokeCallback(callback request.Callback, parsed any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return callback(parsed)
}

// readBody reads and decodes the whole body.
// The number of raw bytes read from the network is returned too.
func readBody(res *http.Response) (body []byte, readBytes int64, err error) {
	raw := counter.NewReadCloser(res.Body, nil)
	defer func() {
		_ = raw.Close()
		readBytes = raw.Bytes()
	}()

	decoded, err := decode.Decode(raw, res.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, 0, fmt.Errorf("cannot read response body: %w", err)
	}
	defer decoded.Close()

	body, err = io.ReadAll(decoded)
	if err != nil {
		return body, 0, fmt.Errorf("cannot read response body: %w", err)
	}
	return body, 0, nil
}

func discardBody(res *http.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}

func isSuccessStatus(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
