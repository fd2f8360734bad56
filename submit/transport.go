package submit

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	tls "github.com/refraction-networking/utls"
)

const (
	submitDialTimeout = 10 * time.Second
	submitIdleTimeout = 90 * time.Second
)

// newTransport builds the transport for the redirect submission.
//
// With chromeTLS set, HTTPS connections present a Chrome ClientHello whose
// ALPN only offers http/1.1, since http.Transport cannot run h2 over a utls
// conn. If no Chrome hello can be built the submission falls back to Go's TLS.
// An http(s) proxy is honoured; other proxy schemes are ignored.
func newTransport(proxy string, chromeTLS bool) *http.Transport {
	dialer := &net.Dialer{Timeout: submitDialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: submitDialTimeout,
		IdleConnTimeout:     submitIdleTimeout,
		MaxIdleConnsPerHost: 4,
	}

	if chromeTLS {
		if _, err := chromeHello(); err != nil {
			slog.Warn("submit: chrome TLS fingerprint unavailable, using Go TLS", "error", err)
		} else {
			transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				raw, err := dialer.DialContext(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				conn, err := chromeHandshake(ctx, raw, addr)
				if err != nil {
					raw.Close()
					return nil, err
				}
				return conn, nil
			}
		}
	}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			slog.Warn("submit: unsupported proxy for the redirect submission, connecting directly", "proxy", proxy)
		}
	}
	return transport
}

// chromeHello returns a fresh Chrome ClientHello spec restricted to
// http/1.1. Specs carry per-connection state, so each dial gets its own.
func chromeHello() (*tls.ClientHelloSpec, error) {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec, nil
}

func chromeHandshake(ctx context.Context, raw net.Conn, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	spec, err := chromeHello()
	if err != nil {
		return nil, fmt.Errorf("submit: chrome hello: %w", err)
	}
	conn := tls.UClient(raw, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := conn.ApplyPreset(spec); err != nil {
		return nil, fmt.Errorf("submit: apply chrome hello: %w", err)
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}
