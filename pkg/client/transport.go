package client

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// DialTimeout specifies default maximum connection initialization time.
const DialTimeout = 3 * time.Second

// KeepAlive specifies default interval between keep-alive probes.
const KeepAlive = 10 * time.Second

// TLSHandshakeTimeout specifies default timeout of TLS handshake.
const TLSHandshakeTimeout = 5 * time.Second

// ResponseHeaderTimeout specifies default amount of time to wait for a server's response headers.
const ResponseHeaderTimeout = 20 * time.Second

// IdleConnTimeout specifies default maximum amount of time an idle connection remains open.
const IdleConnTimeout = 90 * time.Second

// HTTP2PingTimeout specifies default timeout of the HTTP2 health check.
const HTTP2PingTimeout = 3 * time.Second

// MaxConnectionsPerHost specifies default maximum number of open connections to a host.
const MaxConnectionsPerHost = 32

// Transport returns HTTP2Transport if forceHTTP2 is set, otherwise DefaultTransport.
func Transport(forceHTTP2 bool) http.RoundTripper {
	if forceHTTP2 {
		return HTTP2Transport()
	}
	return DefaultTransport()
}

// DefaultTransport default transport with reasonable limits.
// Compression is disabled, the Accept-Encoding header is set by the Client and the body is decoded by the Client.
func DefaultTransport() http.RoundTripper {
	dialer := Dialer()
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true, // HTTP2 is preferred.
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: ResponseHeaderTimeout,
		MaxConnsPerHost:       MaxConnectionsPerHost,
		MaxIdleConnsPerHost:   MaxConnectionsPerHost,
		IdleConnTimeout:       IdleConnTimeout,
		DisableCompression:    true,
	}
}

// HTTP2Transport forces HTTP2 protocol, plain HTTP endpoints are not supported.
func HTTP2Transport() http.RoundTripper {
	dialer := Dialer()
	return &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
			tlsDialer := &tls.Dialer{NetDialer: dialer, Config: cfg}
			return tlsDialer.DialContext(ctx, network, addr)
		},
		DisableCompression: true,
		ReadIdleTimeout:    HTTP2PingTimeout,
		PingTimeout:        HTTP2PingTimeout,
		WriteByteTimeout:   HTTP2PingTimeout,
	}
}

// Dialer - default dialer.
func Dialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: KeepAlive,
	}
}
