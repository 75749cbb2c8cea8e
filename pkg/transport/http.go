package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/httpclient"
	"github.com/waftester/chatprobe/pkg/iohelper"
	"github.com/waftester/chatprobe/pkg/jsonutil"
	"github.com/waftester/chatprobe/pkg/probe"
)

// HTTP sends http candidates as one request each.
type HTTP struct {
	client *http.Client
}

// NewHTTP wraps client. Build it with httpclient.New so redirects are not
// followed.
func NewHTTP(client *http.Client) *HTTP {
	return &HTTP{client: client}
}

// Attempt implements Transport.
func (h *HTTP) Attempt(ctx context.Context, c candidate.Candidate, s *probe.Session, timeout time.Duration) probe.Result {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := h.request(actx, c, s)
	if err != nil {
		return probe.Failed(err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if timedOut(ctx, actx, err) {
			return probe.TimedOut()
		}
		return probe.Failed(httpclient.Classify(err))
	}
	defer iohelper.DrainAndClose(resp.Body)

	body, err := iohelper.ReadBodyDefault(resp.Body)
	if err != nil {
		if timedOut(ctx, actx, err) {
			return probe.TimedOut()
		}
		return probe.Failed(fmt.Errorf("reading response: %w", err))
	}
	return mapStatus(resp.StatusCode, body)
}

func (h *HTTP) request(ctx context.Context, c candidate.Candidate, s *probe.Session) (*http.Request, error) {
	var body io.Reader
	if c.Body != nil {
		data, err := jsonutil.Marshal(c.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := c.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, s.HTTPURL(c.Path), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(defaults.HeaderAuthorization, s.BearerHeader())
	req.Header.Set("Accept", defaults.ContentTypeJSON)
	if body != nil {
		req.Header.Set(defaults.HeaderContentType, defaults.ContentTypeJSON)
	}
	return req, nil
}

// mapStatus turns a status and body into a Result.
func mapStatus(status int, body []byte) probe.Result {
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return probe.Succeeded(decodePayload(body), body, status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return probe.Rejected(probe.AuthMessage, body, status)
	case status >= 400 && status <= 599:
		return probe.Rejected(bodyText(status, body), body, status)
	}
	return probe.Rejected(fmt.Sprintf("unexpected status %d: %s", status, bodyText(status, body)), body, status)
}

// decodePayload returns the decoded JSON body, or the raw text when the
// body is not JSON.
func decodePayload(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v any
	if err := jsonutil.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

func bodyText(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(status)
	}
	return text
}
