package otel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fetchkit/go-apirequest/pkg/request"
)

const (
	maskedAttrValue  = "****"
	maskedQueryValue = "...."
)

type attributes struct {
	config config
	// call attributes for span and metrics
	call []attribute.KeyValue
	// callExtra attributes for span only
	callExtra []attribute.KeyValue
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
	// httpResponseError attributes for span only
	httpResponseError []attribute.KeyValue
	// resourceName is the path of the call URL
	resourceName string
}

func newAttributes(cfg config, desc request.Descriptor) *attributes {
	out := &attributes{config: cfg}

	out.call = []attribute.KeyValue{
		attribute.String("apirequest.method", desc.Method),
	}
	if desc.URL != nil {
		out.resourceName = desc.URL.Path
		out.call = append(out.call,
			attribute.String("apirequest.url.full", cfg.redactURL(desc.URL)),
			attribute.String("apirequest.url.path", desc.URL.Path),
			attribute.String("apirequest.url.host", desc.URL.Host),
		)
	}

	out.callExtra = append(out.callExtra, cfg.headerAttrs("apirequest.header.", desc.Header, false)...)
	if desc.URL != nil {
		for k, v := range desc.URL.Query() {
			value := strings.Join(v, ";")
			if cfg.isRedactedQueryParam(k) {
				value = maskedAttrValue
			}
			out.callExtra = append(out.callExtra, attribute.String("apirequest.query."+k, value))
		}
	}
	out.callExtra = append(out.callExtra, attribute.Int("apirequest.body.size", len(desc.Body)))

	return out
}

func (v *attributes) SetFromRequest(req *http.Request) {
	if req == nil {
		v.httpRequest = nil
		v.httpRequestExtra = nil
		return
	}

	v.httpRequest = []attribute.KeyValue{
		attribute.String("http.method", req.Method),
		attribute.String("http.url", v.config.redactURL(req.URL)),
		attribute.String("net.peer.name", req.URL.Hostname()),
		attribute.String("http.user_agent", req.Header.Get("User-Agent")),
	}
	v.httpRequestExtra = v.config.headerAttrs("http.header.", req.Header, true)
}

func (v *attributes) SetFromResponse(res *http.Response, err error) {
	if res == nil {
		v.httpResponse = nil
		v.httpResponseExtra = nil
	} else {
		v.httpResponse = []attribute.KeyValue{
			attribute.Int("http.status_code", res.StatusCode),
		}
		v.httpResponseExtra = v.config.headerAttrs("http.response.header.", res.Header, true)
	}

	var netErr net.Error
	errors.As(err, &netErr)
	v.httpResponseError = []attribute.KeyValue{
		attribute.Bool("http.response.error.has", err != nil),
		attribute.Bool("http.response.error.net", netErr != nil),
		attribute.Bool("http.response.error.timeout", netErr != nil && netErr.Timeout()),
		attribute.Bool("http.response.error.cancelled", errors.Is(err, context.Canceled)),
		attribute.Bool("http.response.error.deadline_exceeded", errors.Is(err, context.DeadlineExceeded)),
	}
}

func (c config) headerAttrs(prefix string, header http.Header, lowerKeys bool) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for key, values := range header {
		value := strings.Join(values, ";")
		if c.isRedactedHeader(key) {
			value = maskedAttrValue
		}
		if lowerKeys {
			key = strings.ToLower(key)
		}
		attrs = append(attrs, attribute.String(prefix+key, value))
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
	return attrs
}

// redactURL returns the URL as a string, values of the redacted query parameters are masked.
func (c config) redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if len(c.redactedQueryParams) == 0 || u.RawQuery == "" {
		return u.String()
	}

	query := u.Query()
	redacted := false
	for k := range query {
		if c.isRedactedQueryParam(k) {
			query[k] = []string{maskedQueryValue}
			redacted = true
		}
	}
	if !redacted {
		return u.String()
	}

	clone := *u
	clone.RawQuery = query.Encode()
	return clone.String()
}

func failureKind(err error) string {
	var failure *request.Failure
	if errors.As(err, &failure) {
		return cast.ToString(failure.Kind)
	}
	return "unknown"
}
