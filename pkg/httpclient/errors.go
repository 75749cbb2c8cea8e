package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for HTTP client failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrProxyConnect indicates the client failed to connect through
	// the configured proxy (SOCKS4/5, HTTP).
	ErrProxyConnect = errors.New("httpclient: proxy connection failed")

	// ErrDNS indicates a DNS resolution failure for the target host.
	ErrDNS = errors.New("httpclient: DNS resolution failed")

	// ErrTLS indicates a TLS handshake or certificate verification failure.
	ErrTLS = errors.New("httpclient: TLS handshake failed")

	// ErrRefused indicates the target actively refused the connection.
	ErrRefused = errors.New("httpclient: connection refused")
)

// Classify wraps a transport-level error with the matching sentinel so
// callers can branch with errors.Is. Errors that match no sentinel are
// returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %w", ErrDNS, err)
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) || errors.As(err, &recordErr) {
		return fmt.Errorf("%w: %w", ErrTLS, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return fmt.Errorf("%w: %w", ErrRefused, err)
	case strings.Contains(msg, "proxyconnect"), strings.Contains(msg, "socks connect"):
		return fmt.Errorf("%w: %w", ErrProxyConnect, err)
	case strings.Contains(msg, "tls handshake"), strings.Contains(msg, "x509:"):
		return fmt.Errorf("%w: %w", ErrTLS, err)
	}
	return err
}
