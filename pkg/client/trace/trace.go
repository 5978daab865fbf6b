// Package trace extends the httptrace.ClientTrace and adds hooks of the API call lifecycle.
// A custom ClientTrace definition can be registered in the client.Client by the AndTrace method.
package trace

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"reflect"

	"github.com/fetchkit/go-apirequest/pkg/request"
)

// Factory creates ClientTrace hooks for a call.
// The descriptor has only the Method set, if the request could not be built.
type Factory func(ctx context.Context, desc request.Descriptor) (context.Context, *ClientTrace)

// ClientTrace is a set of hooks to run at various stages of an API call.
type ClientTrace struct {
	httptrace.ClientTrace // native, low level trace
	// HTTPRequestStart is called when the request begins. It includes redirects.
	HTTPRequestStart func(request *http.Request)
	// HTTPRequestDone is called when the request completes. It includes redirects.
	HTTPRequestDone func(response *http.Response, err error)
	// Redirected is called when a redirect is going to be followed.
	Redirected func(from, to *url.URL)
	// BodyParseStart is called before the body of a 2xx response is read.
	BodyParseStart func(response *http.Response)
	// BodyParseDone is called when the body is parsed, readBytes is the size of the raw body.
	BodyParseDone func(response *http.Response, readBytes int64, err error)
	// Navigated is called when the page has been navigated to the redirect target.
	Navigated func(to *url.URL, err error)
	// RequestProcessed is called when Client.Execute method is done.
	RequestProcessed func(result any, err error)
}

// Compose modifies t such that it respects the previously-registered hooks in old.
// Hooks of the old trace are called first.
// Based on httptrace.compose, the embedded httptrace.ClientTrace is composed too.
func (t *ClientTrace) Compose(old *ClientTrace) {
	if old == nil {
		return
	}
	compose(reflect.ValueOf(t).Elem(), reflect.ValueOf(old).Elem())
}

func compose(tv, ov reflect.Value) {
	for i := range tv.NumField() {
		tf := tv.Field(i)
		of := ov.Field(i)

		// Embedded httptrace.ClientTrace
		if tf.Kind() == reflect.Struct {
			compose(tf, of)
			continue
		}

		hookType := tf.Type()
		if hookType.Kind() != reflect.Func || !tf.CanSet() {
			continue
		}
		if of.IsNil() {
			continue
		}
		if tf.IsNil() {
			tf.Set(of)
			continue
		}

		// Make a copy of tf for tf to call. (Otherwise it
		// creates a recursive call cycle and stack overflows)
		tfCopy := reflect.ValueOf(tf.Interface())
		ofCopy := reflect.ValueOf(of.Interface())

		// We need to call both tf and of in some order.
		newFunc := reflect.MakeFunc(hookType, func(args []reflect.Value) []reflect.Value {
			ofCopy.Call(args)
			return tfCopy.Call(args)
		})
		tf.Set(newFunc)
	}
}
