package request

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/http/httpguts"
)

// Options describe one API call.
// The zero value is valid, see WithDefaults for the default of each field.
type Options struct {
	// Endpoint is an absolute URL or a URL relative to the page location.
	// Default: "", the page location itself.
	Endpoint string
	// Payload is sent in the query string for GET/HEAD, and in the body otherwise.
	// Default: an empty JSON object.
	Payload Payload
	// Verb is the HTTP method.
	// Default: GET.
	Verb Verb
	// Headers are sent together with the forced X-Requested-With and Content-Type headers.
	// Default: no headers.
	Headers http.Header
	// Callback maps the parsed JSON response to the result.
	// Default: Identity.
	Callback Callback
	// Debug enables the diagnostic log of a failure.
	// Default: false.
	Debug bool
}

// WithDefaults returns a copy of the options with all unset fields defaulted.
func (o Options) WithDefaults() Options {
	if o.Payload == nil {
		o.Payload = NewJSON()
	}
	if o.Verb == "" {
		o.Verb = VerbGet
	}
	if o.Headers == nil {
		o.Headers = make(http.Header)
	}
	if o.Callback == nil {
		o.Callback = Identity
	}
	return o
}

// WithVerb returns a copy of the options with the verb set.
func (o Options) WithVerb(verb Verb) Options {
	o.Verb = verb
	return o
}

// Validate returns all problems found in the options, if any.
func (o Options) Validate() error {
	var errs *multierror.Error

	if o.Verb != "" && !o.Verb.IsSupported() {
		errs = multierror.Append(errs, fmt.Errorf(`verb "%s" is not supported`, o.Verb))
	}

	for name, values := range o.Headers {
		if !httpguts.ValidHeaderFieldName(name) {
			errs = multierror.Append(errs, fmt.Errorf(`header name "%s" is not valid`, name))
			continue
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				errs = multierror.Append(errs, fmt.Errorf(`value of header "%s" is not valid`, name))
			}
		}
	}

	// If there is only one error, then unwrap multierror
	if errs != nil && len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return errs.ErrorOrNil()
}

// HeadersFromMap converts a plain map to http.Header, keys are canonicalized.
func HeadersFromMap(in map[string]string) http.Header {
	out := make(http.Header, len(in))
	for k, v := range in {
		out.Add(k, v)
	}
	return out
}
