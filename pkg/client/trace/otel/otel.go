// Package otel provides OpenTelemetry tracing and metrics for API calls.
//
// The package provides 3 levels of telemetry:
// 1. Low-level httptrace telemetry:
//   - It provides spans for HTTP request parts, for example: "http.dns", "http.tls", "http.getconn".
//   - Span names start with "http".
//   - Metrics are not provided.
//
// 2. HTTP request telemetry:
//   - It provides span and metrics for every sent HTTP request, including redirects.
//   - Span name is "http.request".
//   - Metric "apirequest.http.duration".
//
// 3. Call telemetry:
//   - Main span "apirequest.execute" wraps all HTTP requests of one call together.
//   - Redirects and page navigation are recorded as "redirect" and "navigate" span events.
//   - Span "apirequest.body.parse" tracks response reading and parsing.
//   - Metric names start with "apirequest." (meterPrefix const), see the meters struct.
package otel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fetchkit/go-apirequest/pkg/client/trace"
	"github.com/fetchkit/go-apirequest/pkg/request"
)

const (
	traceAppName     = "github.com/fetchkit/go-apirequest"
	meterPrefix      = "apirequest."
	attrResourceName = attribute.Key("resource.name")
	// Low-level tracing, for each redirect.
	httpSpanPrefix             = "http."
	httpRequestSpanName        = httpSpanPrefix + "request"
	httpDNSSpanName            = httpSpanPrefix + "dns"
	httpGetConnSpanName        = httpSpanPrefix + "getconn"
	httpConnectSpanName        = httpSpanPrefix + "connect"
	httpTLSHandshakeSpanName   = httpSpanPrefix + "tls"
	httpHeadersSpanName        = httpSpanPrefix + "headers"
	httpSendSpanName           = httpSpanPrefix + "send"
	httpReceiveSpanName        = httpSpanPrefix + "receive"
	attrHostName               = attribute.Key("net.host.name")
	attrDNSAddresses           = attribute.Key("http.dns.addrs")
	attrRemoteAddr             = attribute.Key("http.remote")
	attrLocalAddr              = attribute.Key("http.local")
	attrConnectionReused       = attribute.Key("http.conn.reused")
	attrConnectionWasIdle      = attribute.Key("http.conn.wasidle")
	attrConnectionIdleTime     = attribute.Key("http.conn.idletime")
	attrConnectionStartNetwork = attribute.Key("http.conn.start.network")
	attrConnectionDoneNetwork  = attribute.Key("http.conn.done.network")
	attrConnectionDoneAddr     = attribute.Key("http.conn.done.addr")
	attrReadBytes              = attribute.Key("http.read_bytes")
	attrIsRedirect             = attribute.Key("http.response.is_redirect")
	// Call tracing.
	callSpanPrefix        = "apirequest."
	callSpanName          = callSpanPrefix + "execute"
	callBodyParseSpanName = callSpanPrefix + "body.parse"
	redirectEventName     = "redirect"
	navigateEventName     = "navigate"
	attrFailureKind       = attribute.Key("failure.kind")
	attrRedirectFrom      = attribute.Key("redirect.from")
	attrRedirectTo        = attribute.Key("redirect.to")
	attrRedirectsCount    = attribute.Key("apirequest.redirects_count")
	attrNavigateLocation  = attribute.Key("navigate.location")
	attrNavigateError     = attribute.Key("navigate.error")
	// Extra attributes for DataDog.
	attrSpanKind            = attribute.Key("span.kind")
	attrSpanKindValueClient = "client"
	attrSpanType            = attribute.Key("span.type")
	attrSpanTypeValueHTTP   = "http"
)

// NewTrace creates a trace.Factory which reports spans and metrics of each call.
// Nil providers are replaced by no-op providers.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) trace.Factory {
	cfg := newConfig(opts)
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}
	tracer := tracerProvider.Tracer(traceAppName)
	meters := newMeters(meterProvider.Meter(traceAppName))

	return func(rootCtx context.Context, desc request.Descriptor) (context.Context, *trace.ClientTrace) {
		tc := &trace.ClientTrace{}
		attrs := newAttributes(cfg, desc)
		redirects := 0

		// Create root span and metrics, it may contain multiple HTTP requests (redirects).
		var rootSpan otelTrace.Span
		{
			// Metrics
			startTime := time.Now()
			meters.inFlight.Add(rootCtx, 1, otelMetric.WithAttributes(attrs.call...))

			// Tracing
			rootCtx, rootSpan = tracer.Start(
				rootCtx,
				callSpanName,
				otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				otelTrace.WithAttributes(
					attrResourceName.String(attrs.resourceName),
					attrSpanKind.String(attrSpanKindValueClient),
					attrSpanType.String(attrSpanTypeValueHTTP),
				),
				otelTrace.WithAttributes(attrs.call...),
				otelTrace.WithAttributes(attrs.callExtra...),
			)
			tc.RequestProcessed = func(result any, err error) {
				elapsedTime := sinceMs(startTime)

				// Metrics
				meterAttrs := append(append([]attribute.KeyValue{}, attrs.call...), attrs.httpResponse...)
				meters.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(attrs.call...)) // same attributes/dimensions as above (+1)!
				meters.duration.Record(rootCtx, elapsedTime, otelMetric.WithAttributes(meterAttrs...))
				if err != nil {
					meters.failures.Add(rootCtx, 1, otelMetric.WithAttributes(attrs.call...), otelMetric.WithAttributes(attrFailureKind.String(failureKind(err))))
				}

				// Tracing, attributes of the last response
				rootSpan.SetAttributes(attrRedirectsCount.Int(redirects))
				rootSpan.SetAttributes(attrs.httpResponse...)
				rootSpan.SetAttributes(attrs.httpResponseExtra...)
				if err == nil {
					rootSpan.End()
				} else {
					rootSpan.SetAttributes(attrFailureKind.String(failureKind(err)))
					rootSpan.RecordError(err)
					rootSpan.SetStatus(codes.Error, err.Error())
					rootSpan.End(otelTrace.WithStackTrace(true))
				}
			}
			tc.Redirected = func(from, to *url.URL) {
				redirects++
				meters.redirects.Add(rootCtx, 1, otelMetric.WithAttributes(attrs.call...))
				rootSpan.AddEvent(redirectEventName, otelTrace.WithAttributes(
					attrRedirectFrom.String(cfg.redactURL(from)),
					attrRedirectTo.String(cfg.redactURL(to)),
				))
			}
			tc.Navigated = func(to *url.URL, err error) {
				eventAttrs := []attribute.KeyValue{attrNavigateLocation.String(cfg.redactURL(to))}
				if err != nil {
					eventAttrs = append(eventAttrs, attrNavigateError.String(err.Error()))
				}
				rootSpan.AddEvent(navigateEventName, otelTrace.WithAttributes(eventAttrs...))
			}
		}

		// Handle HTTP requests
		var httpCtx context.Context
		var httpRequestSpan otelTrace.Span
		var receiveSpan otelTrace.Span
		{
			var httpRequestStart time.Time
			tc.HTTPRequestStart = func(req *http.Request) {
				// Create HTTP request span
				httpCtx, httpRequestSpan = tracer.Start(
					rootCtx,
					httpRequestSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(
						attrResourceName.String(req.URL.Path),
						attrSpanKind.String(attrSpanKindValueClient),
						attrSpanType.String(attrSpanTypeValueHTTP),
					),
				)

				// Inject trace headers
				if cfg.propagators != nil {
					cfg.propagators.Inject(httpCtx, propagation.HeaderCarrier(req.Header))
				}

				// Attrs
				httpRequestStart = time.Now()
				attrs.SetFromRequest(req)
				httpRequestSpan.SetAttributes(attrs.httpRequest...)
				httpRequestSpan.SetAttributes(attrs.httpRequestExtra...)
			}
			tc.GotFirstResponseByte = func() {
				_, receiveSpan = tracer.Start(
					httpCtx,
					httpReceiveSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				)
			}
			tc.HTTPRequestDone = func(res *http.Response, err error) {
				elapsedTime := sinceMs(httpRequestStart)
				attrs.SetFromResponse(res, err)

				// Metrics
				meters.httpDuration.Record(
					rootCtx,
					elapsedTime,
					otelMetric.WithAttributes(attrs.httpRequest...),
					otelMetric.WithAttributes(attrs.httpResponse...),
				)

				// Tracing
				if receiveSpan != nil {
					if err != nil {
						receiveSpan.RecordError(err)
						receiveSpan.SetStatus(codes.Error, err.Error())
					}
					receiveSpan.End()
					receiveSpan = nil
				}
				if httpRequestSpan != nil {
					httpRequestSpan.SetAttributes(attrs.httpResponse...)
					httpRequestSpan.SetAttributes(attrs.httpResponseExtra...)
					httpRequestSpan.SetAttributes(attrs.httpResponseError...)
					httpRequestSpan.SetAttributes(attrIsRedirect.Bool(isRedirection(res)))
					switch {
					case err != nil:
						httpRequestSpan.RecordError(err)
						httpRequestSpan.SetStatus(codes.Error, err.Error())
					case res != nil && !isSuccess(res, nil):
						httpErr := fmt.Errorf(`HTTP status code: %d %s`, res.StatusCode, http.StatusText(res.StatusCode))
						httpRequestSpan.RecordError(httpErr)
						httpRequestSpan.SetStatus(codes.Error, httpErr.Error())
					}
					httpRequestSpan.End()
					httpRequestSpan = nil
				}
			}
		}

		// Handle body parsing
		{
			var bodyParseSpan otelTrace.Span
			tc.BodyParseStart = func(response *http.Response) {
				_, bodyParseSpan = tracer.Start(
					rootCtx,
					callBodyParseSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(attrs.httpRequest...),
					otelTrace.WithAttributes(attrs.httpResponse...),
				)
			}
			tc.BodyParseDone = func(response *http.Response, readBytes int64, err error) {
				// Metrics
				meters.readBytes.Add(rootCtx, readBytes, otelMetric.WithAttributes(attrs.call...))

				// Tracing
				if bodyParseSpan != nil {
					bodyParseSpan.SetAttributes(attrReadBytes.Int64(readBytes))
					if err != nil {
						bodyParseSpan.RecordError(err)
						bodyParseSpan.SetStatus(codes.Error, err.Error())
					}
					bodyParseSpan.End()
					bodyParseSpan = nil
				}
			}
		}

		// Register low-level tracing.
		// "otelhttptrace" pkg from the opentelemetry-contrib module is buggy, does not end spans:
		// https://github.com/open-telemetry/opentelemetry-go-contrib/issues/399
		// httptrace: DNS
		{
			var dnsSpan otelTrace.Span
			tc.DNSStart = func(info httptrace.DNSStartInfo) {
				_, dnsSpan = tracer.Start(
					httpCtx,
					httpDNSSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(attrHostName.String(info.Host)),
				)
			}
			tc.DNSDone = func(info httptrace.DNSDoneInfo) {
				if dnsSpan != nil {
					var addrs []string
					for _, netAddr := range info.Addrs {
						addrs = append(addrs, netAddr.String())
					}
					dnsSpan.SetAttributes(attrDNSAddresses.String(strings.Join(addrs, ";")))
					if info.Err != nil {
						dnsSpan.RecordError(info.Err)
						dnsSpan.SetStatus(codes.Error, info.Err.Error())
					}
					dnsSpan.End()
					dnsSpan = nil
				}
			}
		}
		// httptrace: Get connection
		{
			var getConnSpan otelTrace.Span
			tc.GetConn = func(host string) {
				_, getConnSpan = tracer.Start(
					httpCtx,
					httpGetConnSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(attrHostName.String(host)),
				)
			}
			tc.GotConn = func(info httptrace.GotConnInfo) {
				if getConnSpan != nil {
					getConnSpan.SetAttributes(
						attrRemoteAddr.String(info.Conn.RemoteAddr().String()),
						attrLocalAddr.String(info.Conn.LocalAddr().String()),
						attrConnectionReused.Bool(info.Reused),
						attrConnectionWasIdle.Bool(info.WasIdle),
					)
					if info.WasIdle {
						getConnSpan.SetAttributes(attrConnectionIdleTime.String(info.IdleTime.String()))
					}
					getConnSpan.End()
					getConnSpan = nil
				}
			}
		}
		// httptrace: Connect
		{
			var connectSpan otelTrace.Span
			tc.ConnectStart = func(network, addr string) {
				_, connectSpan = tracer.Start(
					httpCtx,
					httpConnectSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(
						attrRemoteAddr.String(addr),
						attrConnectionStartNetwork.String(network),
					),
				)
			}
			tc.ConnectDone = func(network, addr string, err error) {
				if connectSpan != nil {
					connectSpan.SetAttributes(
						attrConnectionDoneAddr.String(addr),
						attrConnectionDoneNetwork.String(network),
					)
					if err != nil {
						connectSpan.RecordError(err)
						connectSpan.SetStatus(codes.Error, err.Error())
					}
					connectSpan.End()
					connectSpan = nil
				}
			}
		}
		// httptrace: TLS handshake
		// Note: It is not reported if the http2.Transport is used directly, without upgrade from http.Transport.
		{
			var tlsSpan otelTrace.Span
			tc.TLSHandshakeStart = func() {
				_, tlsSpan = tracer.Start(
					httpCtx,
					httpTLSHandshakeSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				)
			}
			tc.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
				if tlsSpan != nil {
					if err != nil {
						tlsSpan.RecordError(err)
						tlsSpan.SetStatus(codes.Error, err.Error())
					}
					tlsSpan.End()
					tlsSpan = nil
				}
			}
		}
		// httptrace: headers, send
		{
			var headersSpan otelTrace.Span
			var sendSpan otelTrace.Span
			tc.WroteHeaderField = func(_ string, _ []string) {
				// Start headers span at first header
				if headersSpan == nil {
					_, headersSpan = tracer.Start(
						httpCtx,
						httpHeadersSpanName,
						otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					)
				}
			}
			tc.WroteHeaders = func() {
				// End headers span, if any
				if headersSpan != nil {
					headersSpan.End()
					headersSpan = nil
				}

				// Start send span
				_, sendSpan = tracer.Start(
					httpCtx,
					httpSendSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				)
			}
			tc.WroteRequest = func(info httptrace.WroteRequestInfo) {
				if sendSpan != nil {
					// End send span
					if info.Err != nil {
						sendSpan.RecordError(info.Err)
						sendSpan.SetStatus(codes.Error, info.Err.Error())
					}
					sendSpan.End()
					sendSpan = nil
				}
			}
		}

		return rootCtx, tc
	}
}
