package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/probe"
	"github.com/waftester/chatprobe/pkg/websocket"
)

// Connect tries one WebSocket handshake per candidate and closes the
// connection straight after a successful upgrade.
type Connect struct {
	dialer websocket.Dialer
}

// NewConnect builds a Connect adapter.
func NewConnect(dialer websocket.Dialer) *Connect {
	return &Connect{dialer: dialer}
}

// Attempt implements Transport. A successful upgrade yields the effective
// URL, with the credential masked, as the payload's "url" field.
func (t *Connect) Attempt(ctx context.Context, c candidate.Candidate, s *probe.Session, timeout time.Duration) probe.Result {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := s.WebSocketURL(c.Path)
	var header http.Header
	if c.Auth != candidate.AuthNone {
		header = s.AuthHeader()
	}

	conn, resp, err := t.dialer.Dial(actx, target, header)
	if err != nil {
		if errors.Is(err, websocket.ErrHandshake) && resp != nil {
			body := websocket.HandshakeBody(resp)
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return probe.Rejected(probe.AuthMessage, []byte(body), resp.StatusCode)
			}
			msg := strings.TrimSpace(body)
			if msg == "" {
				msg = fmt.Sprintf("handshake rejected with status %d", resp.StatusCode)
			}
			return probe.Rejected(msg, []byte(body), resp.StatusCode)
		}
		if timedOut(ctx, actx, err) {
			return probe.TimedOut()
		}
		return probe.Failed(err)
	}
	_ = conn.Close()

	masked := maskCredential(target, s.Credential())
	return probe.Succeeded(map[string]any{"url": masked}, nil, http.StatusSwitchingProtocols)
}

// maskCredential hides any query value equal to the credential.
func maskCredential(raw, credential string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" || credential == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for key, values := range q {
		for i, v := range values {
			if v == credential {
				values[i] = probe.Redaction
				changed = true
			}
		}
		q[key] = values
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
