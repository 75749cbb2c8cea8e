// Package httpclient builds the HTTP client chatprobe sends probe requests
// through. Redirects are never followed: a 3xx is an answer the operator
// needs to see, not something to chase.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/duration"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the client-level ceiling for one request (default: 30s).
	// Per-attempt bounds are applied through the request context.
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification. Useful against
	// development backends with self-signed certificates.
	InsecureSkipVerify bool

	// Proxy is the HTTP/HTTPS/SOCKS proxy URL (optional)
	Proxy string

	// UserAgent overrides the default chatprobe User-Agent.
	UserAgent string

	// DialTimeout is the timeout for establishing connections (default: 10s)
	DialTimeout time.Duration
}

// DefaultConfig returns the settings probe runs start from.
func DefaultConfig() Config {
	return Config{
		Timeout:     duration.HTTPProbing,
		UserAgent:   defaults.UserAgent(),
		DialTimeout: duration.DialTimeout,
	}
}

// New creates a new HTTP client with the given configuration.
// A malformed proxy URL is an error: silently probing without the proxy
// the operator asked for would send traffic somewhere unexpected.
func New(cfg Config) (*http.Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = duration.HTTPProbing
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = duration.DialTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       duration.IdleConnTimeout,
		TLSHandshakeTimeout:   duration.TLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		DialContext:           dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if err := applyProxy(transport, cfg.Proxy, cfg.DialTimeout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProxyConnect, err)
	}

	return &http.Client{
		Transport: &middlewareTransport{base: transport, userAgent: cfg.UserAgent},
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// WithTimeout returns a new Config based on DefaultConfig with the specified timeout.
func WithTimeout(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	return cfg
}

// applyProxy wires cfg.Proxy into the transport: HTTP(S) proxies through
// transport.Proxy, SOCKS proxies through a replacement dialer.
func applyProxy(transport *http.Transport, proxyURL string, timeout time.Duration) error {
	pc, err := ParseProxyURL(proxyURL)
	if err != nil || pc == nil {
		return err
	}
	if !pc.IsSOCKS {
		transport.Proxy = http.ProxyURL(pc.URL)
		return nil
	}
	d, err := CreateSOCKSDialer(pc, timeout)
	if err != nil {
		return err
	}
	transport.DialContext = d.DialContext
	return nil
}
