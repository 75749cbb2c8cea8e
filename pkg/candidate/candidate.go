// Package candidate holds the hand-curated guesses chatprobe tries for each
// operation and renders them into concrete, ordered Candidates.
package candidate

import (
	"fmt"
	"strings"

	"github.com/waftester/chatprobe/pkg/probe"
)

// Kind says which transport a candidate goes through.
type Kind string

const (
	// KindHTTP is one HTTP request.
	KindHTTP Kind = "http"
	// KindMessage is one JSON message over an open WebSocket.
	KindMessage Kind = "message"
	// KindConnect is one WebSocket handshake.
	KindConnect Kind = "connect"
)

// Auth says where a connect candidate puts the bearer credential.
type Auth string

const (
	AuthHeader Auth = "header"
	AuthNone   Auth = "none"
)

// Candidate is one rendered guess. It is immutable once generated.
type Candidate struct {
	Operation string `json:"operation"`
	// Index is the zero-based position in the operation's trial order.
	Index int    `json:"index"`
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`

	// HTTP
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
	Body   any    `json:"body,omitzero"`

	// Message
	MessageType string `json:"message_type,omitempty"`
	Data        any    `json:"data,omitzero"`

	// Connect
	Auth Auth `json:"auth,omitempty"`
}

// Label is a short human description used in progress output.
func (c Candidate) Label() string {
	switch c.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s %s", strings.ToUpper(c.Method), c.Path)
	case KindMessage:
		return "message " + c.MessageType
	case KindConnect:
		return fmt.Sprintf("connect %s (auth: %s)", c.Path, c.authOrDefault())
	}
	return c.Name
}

// Redacted returns a copy of c with secret replaced in its path, body and
// message data. Templates can put the credential into any of them, so
// anything that records a candidate records the redacted copy.
func (c Candidate) Redacted(secret string) Candidate {
	if secret == "" {
		return c
	}
	c.Path = probe.Redact(c.Path, secret)
	c.Body = probe.RedactValue(c.Body, secret)
	c.Data = probe.RedactValue(c.Data, secret)
	return c
}

func (c Candidate) authOrDefault() Auth {
	if c.Auth == "" {
		return AuthHeader
	}
	return c.Auth
}

// Vars are the per-run values candidate templates can reference.
type Vars struct {
	UserID     string
	PeerUserID string
	ChatID     string
	Content    string
	RandomID   string
	Token      string
	Extra      map[string]string
}
