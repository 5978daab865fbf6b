package client_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	. "github.com/fetchkit/go-apirequest/pkg/client"
	"github.com/fetchkit/go-apirequest/pkg/page"
	"github.com/fetchkit/go-apirequest/pkg/request"
)

type failingPage struct {
	location *url.URL
}

func (p failingPage) Location() *url.URL {
	return p.location
}

func (p failingPage) Navigate(_ context.Context, to *url.URL) error {
	return fmt.Errorf(`navigation to "%s" is blocked`, to)
}

func redirectResponder(status int, location string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		res := httpmock.NewStringResponse(status, "")
		res.Header.Set("Location", location)
		return res, nil
	}
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func TestNew(t *testing.T) {
	t.Parallel()
	c := New()
	assert.NotNil(t, c)
	assert.Nil(t, c.Location())
}

func TestDefaultHeaders(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://example.com", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.Header{
			"User-Agent":       []string{"go-apirequest"},
			"Accept-Encoding":  []string{"gzip, br"},
			"X-Requested-With": []string{"XMLHttpRequest"},
			"Content-Type":     []string{"application/json; charset=UTF-8"},
		}, req.Header)
		return httpmock.NewStringResponse(200, `{}`), nil
	})

	ctx := context.Background()
	c := New().WithTransport(transport)
	out := c.Get(ctx, request.Options{Endpoint: "https://example.com"})
	assert.NoError(t, out.Err())
	assert.Equal(t, 1, transport.GetCallCountInfo()["GET https://example.com"])
}

func TestWithUserAgent(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com`, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "my-user-agent", req.Header.Get("User-Agent"))
		return httpmock.NewStringResponse(200, `{}`), nil
	})

	ctx := context.Background()
	base := New().WithTransport(transport)
	c := base.WithUserAgent("my-user-agent")
	assert.False(t, c.Get(ctx, request.Options{Endpoint: "https://example.com"}).Failed())
	assert.Equal(t, 1, transport.GetCallCountInfo()["GET https://example.com"])

	// Original client is not modified
	transport.RegisterResponder("GET", `https://example.com/base`, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "go-apirequest", req.Header.Get("User-Agent"))
		return httpmock.NewStringResponse(200, `{}`), nil
	})
	assert.False(t, base.Get(ctx, request.Options{Endpoint: "https://example.com/base"}).Failed())
}

func TestWithHeaders(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com`, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, []string{"value1"}, req.Header.Values("Key1"))
		assert.Equal(t, []string{"call"}, req.Header.Values("Key2"))
		assert.Equal(t, []string{"value3"}, req.Header.Values("Key3"))
		return httpmock.NewStringResponse(200, `{}`), nil
	})

	ctx := context.Background()
	c := New().
		WithTransport(transport).
		WithHeaders(map[string]string{"key1": "value1", "key2": "value2"}).
		WithHeader("key3", "value3")

	// Header of the call has priority over the common header
	out := c.Get(ctx, request.Options{
		Endpoint: "https://example.com",
		Headers:  request.HeadersFromMap(map[string]string{"key2": "call"}),
	})
	assert.NoError(t, out.Err())
	assert.Equal(t, 1, transport.GetCallCountInfo()["GET https://example.com"])
}

func TestExecute_JSONResult(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("GET", "https://example.com/items", httpmock.NewStringResponder(200, `{"x":1}`))

	out := c.Execute(context.Background(), request.Options{Endpoint: "https://example.com/items"})
	assert.False(t, out.Failed())
	assert.False(t, out.Redirected())
	assert.NoError(t, out.Err())
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, map[string]any{"x": float64(1)}, out.Value)
}

func TestExecute_Callback(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("GET", "https://example.com/count", httpmock.NewStringResponder(200, `{"n":5}`))

	out := c.Get(context.Background(), request.Options{
		Endpoint: "https://example.com/count",
		Callback: func(json any) (any, error) {
			return json.(map[string]any)["n"].(float64) * 2, nil
		},
	})
	assert.NoError(t, out.Err())
	assert.Equal(t, float64(10), out.Value)

	// Typed callback
	type count struct {
		N int `json:"n"`
	}
	out = c.Get(context.Background(), request.Options{
		Endpoint: "https://example.com/count",
		Callback: request.Typed(func(v count) (any, error) {
			return v.N * 2, nil
		}),
	})
	assert.NoError(t, out.Err())
	assert.Equal(t, 10, out.Value)
}

func TestExecute_JSONNull(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("GET", "https://example.com", httpmock.NewStringResponder(200, `null`))

	out := c.Get(context.Background(), request.Options{Endpoint: "https://example.com"})
	assert.False(t, out.Failed())
	assert.Nil(t, out.Value)
	assert.Equal(t, http.StatusOK, out.Status)
}

func TestExecute_QueryAndRelativeEndpoint(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	c = c.WithLocation("https://example.com/app/index.html?page=1")
	transport.RegisterResponder("GET", "https://example.com/app/api/items", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "a=1&b=2", req.URL.RawQuery)
		assert.Nil(t, req.Body)
		return httpmock.NewStringResponse(200, `[1,2]`), nil
	})

	out := c.Get(context.Background(), request.Options{
		Endpoint: "api/items",
		Payload:  request.NewJSON(orderedmap.Pair{Key: "a", Value: "1"}, orderedmap.Pair{Key: "b", Value: 2}),
	})
	assert.NoError(t, out.Err())
	assert.Equal(t, []any{float64(1), float64(2)}, out.Value)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestExecute_Body(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("POST", "https://example.com/json", func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		assert.NoError(t, err)
		assert.Equal(t, `{"a":"1"}`, string(body))
		assert.Equal(t, []string{"application/json; charset=UTF-8"}, req.Header.Values("Content-Type"))
		return httpmock.NewStringResponse(201, `{"ok":true}`), nil
	})
	transport.RegisterResponder("PUT", "https://example.com/form", func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		assert.NoError(t, err)
		assert.Equal(t, `a=1`, string(body))
		assert.Equal(t, []string{"application/x-www-form-urlencoded; charset=UTF-8"}, req.Header.Values("Content-Type"))
		return httpmock.NewStringResponse(200, `{"ok":true}`), nil
	})

	ctx := context.Background()
	out := c.Post(ctx, request.Options{Endpoint: "https://example.com/json", Payload: request.NewJSON(orderedmap.Pair{Key: "a", Value: "1"})})
	assert.NoError(t, out.Err())
	assert.Equal(t, http.StatusCreated, out.Status)

	out = c.Put(ctx, request.Options{Endpoint: "https://example.com/form", Payload: request.NewForm().Append("a", "1")})
	assert.NoError(t, out.Err())
	assert.Equal(t, map[string]any{"ok": true}, out.Value)
}

func TestExecute_ForcedHeadersAppended(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("POST", "https://example.com", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, []string{"text/plain", "application/json; charset=UTF-8"}, req.Header.Values("Content-Type"))
		assert.Equal(t, []string{"XMLHttpRequest"}, req.Header.Values("X-Requested-With"))
		assert.Equal(t, "Bearer token", req.Header.Get("Authorization"))
		return httpmock.NewStringResponse(200, `{}`), nil
	})

	out := c.Post(context.Background(), request.Options{
		Endpoint: "https://example.com",
		Headers:  request.HeadersFromMap(map[string]string{"Content-Type": "text/plain", "Authorization": "Bearer token"}),
	})
	assert.NoError(t, out.Err())
}

func TestVerbAliases(t *testing.T) {
	t.Parallel()

	type sentRequest struct {
		method string
		url    string
		header http.Header
		body   string
	}

	c, transport := NewMockedClient()
	var sent []sentRequest
	transport.RegisterNoResponder(func(req *http.Request) (*http.Response, error) {
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
		}
		sent = append(sent, sentRequest{method: req.Method, url: req.URL.String(), header: req.Header.Clone(), body: string(body)})
		return httpmock.NewStringResponse(200, `{"ok":true}`), nil
	})

	ctx := context.Background()
	opts := request.Options{
		Endpoint: "https://example.com/items?x=y",
		Payload:  request.NewJSON(orderedmap.Pair{Key: "a", Value: "1"}),
		Headers:  request.HeadersFromMap(map[string]string{"X-Custom": "value"}),
	}
	aliases := map[request.Verb]func(context.Context, request.Options) Outcome{
		request.VerbGet:     c.Get,
		request.VerbHead:    c.Head,
		request.VerbPost:    c.Post,
		request.VerbPut:     c.Put,
		request.VerbDelete:  c.Delete,
		request.VerbOptions: c.Options,
		request.VerbPatch:   c.Patch,
	}
	for _, verb := range request.Verbs() {
		sent = nil

		aliasOut := aliases[verb](ctx, opts)
		executeOpts := opts
		executeOpts.Verb = verb
		executeOut := c.Execute(ctx, executeOpts)

		require.Len(t, sent, 2, verb)
		assert.Equal(t, sent[0], sent[1], verb)
		assert.Equal(t, verb.String(), sent[0].method, verb)
		assert.Equal(t, executeOut, aliasOut, verb)
		if verb.InQuery() {
			assert.Equal(t, "https://example.com/items?a=1", sent[0].url, verb)
			assert.Empty(t, sent[0].body, verb)
		} else {
			assert.Equal(t, "https://example.com/items?x=y", sent[0].url, verb)
			assert.Equal(t, `{"a":"1"}`, sent[0].body, verb)
		}
	}
}

func TestExecute_Redirect(t *testing.T) {
	t.Parallel()

	window, err := page.NewWindow("https://example.com/form")
	require.NoError(t, err)

	c, transport := NewMockedClient()
	c = c.WithPage(window)
	transport.RegisterResponder("POST", "https://example.com/save", redirectResponder(http.StatusSeeOther, "/done"))
	transport.RegisterResponder("GET", "https://example.com/done", httpmock.NewStringResponder(200, `{"x":1}`))

	callbackCalled := false
	out := c.Post(context.Background(), request.Options{
		Endpoint: "/save",
		Payload:  request.NewForm().Append("a", "1"),
		Callback: func(json any) (any, error) {
			callbackCalled = true
			return json, nil
		},
	})
	assert.False(t, out.Failed())
	assert.True(t, out.Redirected())
	assert.Nil(t, out.Value)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, "https://example.com/done", out.Redirect.String())
	assert.False(t, callbackCalled)

	// Page is navigated
	assert.Equal(t, "https://example.com/done", window.Location().String())
	require.Len(t, window.History(), 1)
	assert.Equal(t, "https://example.com/done", window.History()[0].String())
	assert.Equal(t, 1, transport.GetCallCountInfo()["POST https://example.com/save"])
	assert.Equal(t, 1, transport.GetCallCountInfo()["GET https://example.com/done"])
}

func TestExecute_Redirect_ErrorStatus(t *testing.T) {
	t.Parallel()

	// Redirect wins over the final status
	c, transport := NewMockedClient()
	c = c.WithLocation("https://example.com")
	transport.RegisterResponder("GET", "https://example.com/old", redirectResponder(http.StatusFound, "https://other.com/login"))
	transport.RegisterResponder("GET", "https://other.com/login", httpmock.NewStringResponder(500, `oops`))

	logger, logs := newObservedLogger()
	out := c.WithLogger(logger).Get(context.Background(), request.Options{Endpoint: "/old", Debug: true})
	assert.False(t, out.Failed())
	assert.True(t, out.Redirected())
	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, "https://other.com/login", c.Location().String())
	assert.Equal(t, 0, logs.Len())
}

func TestExecute_Redirect_PreserveBody(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("POST", "https://example.com/old", redirectResponder(http.StatusTemporaryRedirect, "/new"))
	transport.RegisterResponder("POST", "https://example.com/new", func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		assert.NoError(t, err)
		assert.Equal(t, `{"a":"1"}`, string(body))
		return httpmock.NewStringResponse(200, `{}`), nil
	})

	out := c.Post(context.Background(), request.Options{
		Endpoint: "https://example.com/old",
		Payload:  request.NewJSON(orderedmap.Pair{Key: "a", Value: "1"}),
	})
	assert.NoError(t, out.Err())
	assert.Equal(t, "https://example.com/new", out.Redirect.String())
	assert.Equal(t, "https://example.com/new", c.Location().String())
}

func TestExecute_Redirect_NavigationFailure(t *testing.T) {
	t.Parallel()

	location, _ := url.Parse("https://example.com")
	c, transport := NewMockedClient()
	c = c.WithPage(failingPage{location: location})
	transport.RegisterResponder("GET", "https://example.com/old", redirectResponder(http.StatusMovedPermanently, "/new"))
	transport.RegisterResponder("GET", "https://example.com/new", httpmock.NewStringResponder(200, `{}`))

	out := c.Get(context.Background(), request.Options{Endpoint: "/old"})
	require.True(t, out.Failed())
	assert.True(t, out.Redirected())
	assert.Equal(t, request.FailureNavigation, out.Failure.Kind)
	assert.EqualError(t, out.Err(), `navigation failure: request GET "https://example.com/old": navigation to "https://example.com/new" is blocked`)
}

func TestExecute_TooManyRedirects(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("GET", "https://example.com/loop", redirectResponder(http.StatusFound, "/loop"))

	out := c.Get(context.Background(), request.Options{Endpoint: "https://example.com/loop"})
	require.True(t, out.Failed())
	assert.Equal(t, request.FailureTransport, out.Failure.Kind)
	assert.Contains(t, out.Err().Error(), "stopped after 20 redirects")
	assert.Equal(t, 21, transport.GetCallCountInfo()["GET https://example.com/loop"])
	assert.Nil(t, c.Location())
}

func TestExecute_ResponseError(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("GET", "https://example.com/missing", httpmock.NewStringResponder(404, `{"error":"not found"}`))

	// Without debug, nothing is logged
	logger, logs := newObservedLogger()
	c = c.WithLogger(logger)
	out := c.Get(context.Background(), request.Options{Endpoint: "https://example.com/missing"})
	require.True(t, out.Failed())
	assert.Nil(t, out.Value)
	assert.Equal(t, http.StatusNotFound, out.Status)
	assert.Equal(t, request.FailureResponse, out.Failure.Kind)
	assert.Equal(t, http.StatusNotFound, out.Failure.StatusCode())
	assert.Equal(t, 0, logs.Len())

	var responseErr *request.ResponseError
	require.ErrorAs(t, out.Err(), &responseErr)
	assert.Equal(t, `{"error":"not found"}`, string(responseErr.Body))
	assert.Equal(t, http.StatusNotFound, responseErr.Response.StatusCode)

	// With debug, exactly one entry is logged
	out = c.Get(context.Background(), request.Options{Endpoint: "https://example.com/missing", Debug: true})
	require.True(t, out.Failed())
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	assert.Equal(t, "Something went wrong.", entry.Message)
	assert.Equal(t, map[string]any{
		"error":        `response failure: request GET "https://example.com/missing": 404 Not Found`,
		"failure.kind": "response",
		"http.method":  "GET",
		"http.url":     "https://example.com/missing",
		"http.status":  int64(404),
	}, entry.ContextMap())
}

func TestExecute_ParseFailure(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("GET", "https://example.com/html", func(req *http.Request) (*http.Response, error) {
		res := httpmock.NewStringResponse(200, `<html></html>`)
		res.Header.Set("Content-Type", "text/html; charset=utf-8")
		return res, nil
	})
	transport.RegisterResponder("GET", "https://example.com/empty", httpmock.NewStringResponder(200, ``))
	transport.RegisterResponder("DELETE", "https://example.com/empty", httpmock.NewStringResponder(204, ``))

	logger, logs := newObservedLogger()
	c = c.WithLogger(logger)
	ctx := context.Background()

	out := c.Get(ctx, request.Options{Endpoint: "https://example.com/html", Debug: true})
	require.True(t, out.Failed())
	assert.Equal(t, request.FailureParse, out.Failure.Kind)
	assert.Contains(t, out.Err().Error(), `cannot decode JSON, content type is "text/html"`)

	out = c.Get(ctx, request.Options{Endpoint: "https://example.com/empty", Debug: true})
	require.True(t, out.Failed())
	assert.Equal(t, request.FailureParse, out.Failure.Kind)
	assert.Contains(t, out.Err().Error(), "response body is empty")

	// Empty body of 204 is a parse failure too
	out = c.Delete(ctx, request.Options{Endpoint: "https://example.com/empty"})
	require.True(t, out.Failed())
	assert.Equal(t, request.FailureParse, out.Failure.Kind)
	assert.Equal(t, http.StatusNoContent, out.Status)

	assert.Equal(t, 2, logs.Len())
	for _, entry := range logs.All() {
		assert.Equal(t, "Something went wrong.", entry.Message)
		assert.Equal(t, "parse", entry.ContextMap()["failure.kind"])
	}
}

func TestExecute_TransportFailure(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("GET", "https://example.com", httpmock.NewErrorResponder(errors.New("connection refused")))

	logger, logs := newObservedLogger()
	out := c.WithLogger(logger).Get(context.Background(), request.Options{Endpoint: "https://example.com", Debug: true})
	require.True(t, out.Failed())
	assert.Equal(t, request.FailureTransport, out.Failure.Kind)
	assert.Equal(t, 0, out.Status)
	assert.EqualError(t, out.Err(), `transport failure: request GET "https://example.com": connection refused`)

	require.Equal(t, 1, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "http.status")
}

func TestExecute_RequestFailure(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	logger, logs := newObservedLogger()
	c = c.WithLogger(logger)

	// Relative endpoint and blank page
	out := c.Get(context.Background(), request.Options{Endpoint: "/relative", Debug: true})
	require.True(t, out.Failed())
	assert.Equal(t, request.FailureRequest, out.Failure.Kind)
	assert.EqualError(t, out.Err(), `request failure: endpoint "/relative" is relative and the page location is not set`)

	// Unsupported verb
	out = c.Execute(context.Background(), request.Options{Endpoint: "https://example.com", Verb: "TRACE", Debug: true})
	require.True(t, out.Failed())
	assert.Equal(t, request.FailureRequest, out.Failure.Kind)

	assert.Equal(t, 0, transport.GetTotalCallCount())
	assert.Equal(t, 2, logs.Len())
}

func TestExecute_CallbackFailure(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	transport.RegisterResponder("GET", "https://example.com", httpmock.NewStringResponder(200, `{"x":1}`))

	out := c.Get(context.Background(), request.Options{
		Endpoint: "https://example.com",
		Callback: func(json any) (any, error) {
			return "partial", errors.New("invalid data")
		},
	})
	require.True(t, out.Failed())
	assert.Nil(t, out.Value)
	assert.Equal(t, request.FailureCallback, out.Failure.Kind)
	assert.ErrorContains(t, out.Err(), "invalid data")

	// Panic in the callback is a failure too
	out = c.Get(context.Background(), request.Options{
		Endpoint: "https://example.com",
		Callback: func(json any) (any, error) {
			return json.([]any)[0], nil
		},
	})
	require.True(t, out.Failed())
	assert.Equal(t, request.FailureCallback, out.Failure.Kind)
	assert.ErrorContains(t, out.Err(), "callback panicked")
}

func TestExecute_ZeroValueClient(t *testing.T) {
	t.Parallel()

	assert.PanicsWithError(t, "client value is not initialized", func() {
		Client{}.Execute(context.Background(), request.Options{Endpoint: "https://example.com"})
	})
}

func TestExecute_ContentEncoding(t *testing.T) {
	t.Parallel()

	var body bytes.Buffer
	gw := gzip.NewWriter(&body)
	_, err := gw.Write([]byte(`{"compressed":true}`))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	c, transport := NewMockedClient()
	transport.RegisterResponder("GET", "https://example.com", func(req *http.Request) (*http.Response, error) {
		res := httpmock.NewBytesResponse(200, body.Bytes())
		res.Header.Set("Content-Encoding", "gzip")
		return res, nil
	})

	out := c.Get(context.Background(), request.Options{Endpoint: "https://example.com"})
	assert.NoError(t, out.Err())
	assert.Equal(t, map[string]any{"compressed": true}, out.Value)
}

func TestContext_DeadlineExceeded(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://example.com", func(req *http.Request) (*http.Response, error) {
		time.Sleep(100 * time.Millisecond) // <<<<<<<
		return httpmock.NewStringResponse(200, `{}`), nil
	})

	// Create client
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(50*time.Millisecond))
	defer cancel()
	c := New().WithTransport(transport)

	out := c.Get(ctx, request.Options{Endpoint: "https://example.com"})
	require.True(t, out.Failed())
	assert.Equal(t, request.FailureTransport, out.Failure.Kind)
	assert.Contains(t, out.Err().Error(), `transport failure: request GET "https://example.com": timeout after`)
}

func TestContext_Canceled(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://example.com", func(req *http.Request) (*http.Response, error) {
		time.Sleep(100 * time.Millisecond) // <<<<<<<
		return httpmock.NewStringResponse(200, `{}`), nil
	})

	// Create client
	ctx, cancel := context.WithCancel(context.Background())
	c := New().WithTransport(transport)

	pending := c.Go(ctx, request.Options{Endpoint: "https://example.com"})
	time.Sleep(50 * time.Millisecond)
	cancel()

	out := pending.Wait()
	require.True(t, out.Failed())
	assert.Contains(t, out.Err().Error(), `transport failure: request GET "https://example.com": canceled after`)
}

func TestGo(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	release := make(chan struct{})
	transport.RegisterResponder("GET", "https://example.com", func(req *http.Request) (*http.Response, error) {
		<-release
		return httpmock.NewStringResponse(200, `"done"`), nil
	})

	pending := c.Go(context.Background(), request.Options{Endpoint: "https://example.com"})
	select {
	case <-pending.Done():
		assert.Fail(t, "call should be in progress")
	default:
	}

	close(release)
	<-pending.Done()
	out := pending.Wait()
	assert.NoError(t, out.Err())
	assert.Equal(t, "done", out.Value)

	// Wait can be called repeatedly
	assert.Equal(t, out, pending.Wait())
}

func TestExecute_ConcurrentCallsAreIndependent(t *testing.T) {
	t.Parallel()

	c, transport := NewMockedClient()
	c = c.WithLocation("https://example.com")
	transport.RegisterNoResponder(func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("fail") == "true" {
			return httpmock.NewStringResponse(500, `{}`), nil
		}
		return httpmock.NewStringResponse(200, `{"id":"`+req.URL.Query().Get("id")+`"}`), nil
	})

	logger, logs := newObservedLogger()
	c = c.WithLogger(logger)

	const count = 50
	outcomes := make([]Outcome, count)
	grp, ctx := errgroup.WithContext(context.Background())
	for i := range count {
		grp.Go(func() error {
			outcomes[i] = c.Get(ctx, request.Options{
				Endpoint: "/items",
				Payload: request.NewJSON(
					orderedmap.Pair{Key: "id", Value: i},
					orderedmap.Pair{Key: "fail", Value: i%5 == 0},
				),
				Debug: true,
			})
			return nil
		})
	}
	require.NoError(t, grp.Wait())

	for i, out := range outcomes {
		if i%5 == 0 {
			assert.True(t, out.Failed(), i)
			assert.Equal(t, request.FailureResponse, out.Failure.Kind, i)
		} else {
			assert.NoError(t, out.Err(), i)
			assert.Equal(t, map[string]any{"id": fmt.Sprintf("%d", i)}, out.Value, i)
		}
	}
	assert.Equal(t, count/5, logs.Len())
}
