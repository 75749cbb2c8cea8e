package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Supported proxy schemes:
//   - http://, https:// - CONNECT proxy (e.g. Burp or mitmproxy for inspecting probes)
//   - socks5://         - SOCKS5 proxy, local DNS resolution
//   - socks5h://        - SOCKS5 proxy, DNS resolved by the proxy
var supportedProxySchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks5":  true,
	"socks5h": true,
}

// ProxyConfig holds parsed proxy configuration
type ProxyConfig struct {
	URL      *url.URL
	Scheme   string
	Host     string
	Port     string
	Username string
	Password string
	IsSOCKS  bool
}

// ParseProxyURL validates and parses a proxy URL string.
// Returns nil, nil if proxyURL is empty (no proxy configured).
func ParseProxyURL(proxyURL string) (*ProxyConfig, error) {
	if proxyURL == "" {
		return nil, nil
	}
	if !strings.Contains(proxyURL, "://") {
		proxyURL = "http://" + proxyURL
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !supportedProxySchemes[scheme] {
		return nil, fmt.Errorf("unsupported proxy scheme '%s', supported: http, https, socks5, socks5h", scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("proxy URL missing host")
	}
	port := parsed.Port()
	if port == "" {
		switch scheme {
		case "http":
			port = "8080"
		case "https":
			port = "8443"
		default:
			port = "1080"
		}
	}

	cfg := &ProxyConfig{
		URL:     parsed,
		Scheme:  scheme,
		Host:    host,
		Port:    port,
		IsSOCKS: strings.HasPrefix(scheme, "socks"),
	}
	if parsed.User != nil {
		cfg.Username = parsed.User.Username()
		cfg.Password, _ = parsed.User.Password()
	}
	return cfg, nil
}

// Address returns the proxy address in host:port format
func (p *ProxyConfig) Address() string {
	if p == nil {
		return ""
	}
	return net.JoinHostPort(p.Host, p.Port)
}

// ContextDialer is an interface for dialers that support context
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// timeoutDialer bounds a SOCKS dial, which has no timeout of its own.
type timeoutDialer struct {
	dialer  proxy.Dialer
	timeout time.Duration
}

func (t *timeoutDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if cd, ok := t.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := t.dialer.Dial(network, address)
		ch <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			// Close a connection that lands after the caller gave up.
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("proxy dial timeout: %w", ctx.Err())
	case r := <-ch:
		return r.conn, r.err
	}
}

// CreateSOCKSDialer creates a SOCKS5 dialer from ProxyConfig.
func CreateSOCKSDialer(config *ProxyConfig, timeout time.Duration) (ContextDialer, error) {
	if config == nil {
		return nil, fmt.Errorf("proxy config is nil")
	}

	// socks5h differs only in where names are resolved; x/net/proxy passes
	// hostnames through, so both map to the socks5 dialer.
	proxyURL := &url.URL{Scheme: "socks5", Host: config.Address()}
	if config.Username != "" {
		proxyURL.User = url.UserPassword(config.Username, config.Password)
	}

	dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS dialer: %w", err)
	}
	return &timeoutDialer{dialer: dialer, timeout: timeout}, nil
}
