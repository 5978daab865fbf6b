package request

import (
	"errors"
	"fmt"
	"net/http"
)

// FailureKind tags the step at which a call failed.
type FailureKind string

const (
	// FailureRequest - the options could not be turned into a request, e.g. invalid endpoint.
	FailureRequest FailureKind = "request"
	// FailureTransport - network level failure, e.g. DNS, connection refused, timeout.
	FailureTransport FailureKind = "transport"
	// FailureResponse - the response status is not 2xx and the request was not redirected.
	FailureResponse FailureKind = "response"
	// FailureParse - the response body is not valid JSON.
	FailureParse FailureKind = "parse"
	// FailureCallback - the callback returned an error.
	FailureCallback FailureKind = "callback"
	// FailureNavigation - the page could not be navigated to the redirect target.
	FailureNavigation FailureKind = "navigation"
)

// Failure is a tagged error of one call.
type Failure struct {
	Kind   FailureKind
	Method string
	URL    string
	Err    error
}

// ResponseError is the cause of the FailureResponse, it carries the raw response.
// The Response.Body is already consumed and closed, the decoded content is in the Body field.
type ResponseError struct {
	Response *http.Response
	Body     []byte
}

// NewFailure creates a Failure, the descriptor may be empty if the request was not built.
func NewFailure(kind FailureKind, desc Descriptor, err error) *Failure {
	f := &Failure{Kind: kind, Method: desc.Method, Err: err}
	if desc.URL != nil {
		f.URL = desc.URL.String()
	}
	return f
}

func (f *Failure) Error() string {
	if f.Method == "" || f.URL == "" {
		return fmt.Sprintf(`%s failure: %s`, f.Kind, f.Err)
	}
	return fmt.Sprintf(`%s failure: request %s "%s": %s`, f.Kind, f.Method, f.URL, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// StatusCode returns the response status code, or 0 if no response has been received.
func (f *Failure) StatusCode() int {
	var responseErr *ResponseError
	if errors.As(f.Err, &responseErr) && responseErr.Response != nil {
		return responseErr.Response.StatusCode
	}
	return 0
}

func (e *ResponseError) Error() string {
	if e.Response == nil {
		return "unexpected response"
	}
	return fmt.Sprintf("%d %s", e.Response.StatusCode, http.StatusText(e.Response.StatusCode))
}
