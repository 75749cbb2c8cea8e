package httpclient

import "net/http"

// middlewareTransport stamps the configured User-Agent on every request.
// It never retries: one probe attempt is exactly one request.
type middlewareTransport struct {
	base      http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (m *middlewareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if m.userAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", m.userAgent)
	}
	return m.base.RoundTrip(r)
}
