package probe

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/jwt"
)

// SessionConfig is the externally supplied configuration a Session is
// built from. Nothing is read from the environment here.
type SessionConfig struct {
	// BaseURL is the backend's HTTP address, e.g. http://host:8080.
	BaseURL string
	// WSURL is the backend's WebSocket address. Empty means BaseURL with
	// its scheme switched to ws/wss.
	WSURL string
	// Credential is the bearer token attached to every request.
	Credential string
}

// Session is the run-scoped connection and auth context. It is read-only
// after construction and belongs to one run.
type Session struct {
	base       *url.URL
	ws         *url.URL
	credential string
	userID     string
}

// NewSession validates cfg and builds a Session. The credential's user id
// is decoded when the credential is a JWT; opaque credentials are allowed
// and leave UserID empty.
func NewSession(cfg SessionConfig) (*Session, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNoAddress
	}
	if strings.TrimSpace(cfg.Credential) == "" {
		return nil, ErrNoCredential
	}

	base, err := parseAddress(cfg.BaseURL, "http", "https")
	if err != nil {
		return nil, err
	}

	var ws *url.URL
	if cfg.WSURL != "" {
		ws, err = parseAddress(cfg.WSURL, "ws", "wss")
		if err != nil {
			return nil, err
		}
	} else {
		ws = HTTPToWS(base)
	}

	s := &Session{base: base, ws: ws, credential: strings.TrimSpace(cfg.Credential)}
	if id, err := jwt.UserIDFromToken(s.credential); err == nil {
		s.userID = id
	}
	return s, nil
}

// BaseURL returns the HTTP base address without a trailing slash.
func (s *Session) BaseURL() string { return s.base.String() }

// WSBaseURL returns the WebSocket base address.
func (s *Session) WSBaseURL() string { return s.ws.String() }

// Credential returns the bearer credential.
func (s *Session) Credential() string { return s.credential }

// UserID returns the user id decoded from the credential, if any.
func (s *Session) UserID() string { return s.userID }

// BearerHeader returns the Authorization header value.
func (s *Session) BearerHeader() string { return defaults.BearerPrefix + s.credential }

// AuthHeader returns a header set carrying the bearer credential.
func (s *Session) AuthHeader() http.Header {
	h := http.Header{}
	h.Set(defaults.HeaderAuthorization, s.BearerHeader())
	return h
}

// HTTPURL resolves a candidate path (optionally with a query) against the
// HTTP base address.
func (s *Session) HTTPURL(path string) string {
	return join(s.base, path)
}

// WebSocketURL resolves a candidate path against the WebSocket address.
func (s *Session) WebSocketURL(path string) string {
	return join(s.ws, path)
}

// HTTPToWS converts an http(s) URL to its ws(s) equivalent.
func HTTPToWS(u *url.URL) *url.URL {
	c := *u
	switch c.Scheme {
	case "https":
		c.Scheme = "wss"
	default:
		c.Scheme = "ws"
	}
	return &c
}

func parseAddress(raw string, schemes ...string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrBadAddress, raw)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			u.Scheme = s
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: scheme %q, want one of %v", ErrBadAddress, u.Scheme, schemes)
}

func join(base *url.URL, path string) string {
	if path == "" {
		return base.String()
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(base.String(), "/") + path
}
