// Package probe defines what one probe attempt produces and the run-scoped
// session every attempt is made with.
package probe

import (
	"fmt"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/waftester/chatprobe/pkg/iohelper"
)

// Kind tags a Result.
type Kind string

const (
	// KindSuccess: the server accepted the candidate.
	KindSuccess Kind = "success"
	// KindRecognizedError: the server understood the request and rejected it.
	KindRecognizedError Kind = "recognized_error"
	// KindTimeout: no reply arrived within the attempt timeout.
	KindTimeout Kind = "timeout"
	// KindTransportFailure: the exchange failed below the application layer.
	KindTransportFailure Kind = "transport_failure"
)

// AuthMessage is the RecognizedError message transports use for 401/403.
const AuthMessage = "auth"

// Result is the outcome of exactly one attempt. Results are values; once a
// transport returns one nothing modifies it, and Payload must be treated as
// read-only.
type Result struct {
	Kind Kind `json:"kind"`

	// Payload is the decoded success body (HTTP) or reply data (message).
	Payload any `json:"payload,omitzero"`

	// Message is the rejection text of a RecognizedError.
	Message string `json:"message,omitempty"`

	// Status is the HTTP status, 0 for message exchanges.
	Status int `json:"status,omitempty"`

	// ReplyType is the declared type of a message reply.
	ReplyType string `json:"reply_type,omitempty"`

	// Body is the raw response body or reply frame.
	Body string `json:"body,omitempty"`

	// BodyHash fingerprints Body so identical rejections can be grouped.
	BodyHash uint32 `json:"body_hash,omitempty"`

	// Cause is the transport error behind a TransportFailure.
	Cause     error  `json:"-"`
	CauseText string `json:"cause,omitempty"`

	// Elapsed is how long the attempt took.
	Elapsed time.Duration `json:"-"`
}

// Succeeded builds a Success result.
func Succeeded(payload any, body []byte, status int) Result {
	return Result{
		Kind:     KindSuccess,
		Payload:  payload,
		Status:   status,
		Body:     string(body),
		BodyHash: hash(body),
	}
}

// Rejected builds a RecognizedError result.
func Rejected(message string, body []byte, status int) Result {
	return Result{
		Kind:     KindRecognizedError,
		Message:  message,
		Status:   status,
		Body:     string(body),
		BodyHash: hash(body),
	}
}

// TimedOut builds a Timeout result.
func TimedOut() Result {
	return Result{Kind: KindTimeout}
}

// Failed builds a TransportFailure result.
func Failed(cause error) Result {
	r := Result{Kind: KindTransportFailure, Cause: cause}
	if cause != nil {
		r.CauseText = cause.Error()
	}
	return r
}

// WithReplyType returns a copy of r carrying the message reply type.
func (r Result) WithReplyType(t string) Result {
	r.ReplyType = t
	return r
}

// WithElapsed returns a copy of r carrying the attempt duration.
func (r Result) WithElapsed(d time.Duration) Result {
	r.Elapsed = d
	return r
}

// IsSuccess reports whether r is a Success.
func (r Result) IsSuccess() bool { return r.Kind == KindSuccess }

// Summary is a one-line human description.
func (r Result) Summary() string {
	switch r.Kind {
	case KindSuccess:
		if r.ReplyType != "" {
			return fmt.Sprintf("success (%s)", r.ReplyType)
		}
		return fmt.Sprintf("success (%d)", r.Status)
	case KindRecognizedError:
		msg := iohelper.Snippet(r.Message, iohelper.SnippetLen)
		if r.Status != 0 {
			return fmt.Sprintf("rejected (%d): %s", r.Status, msg)
		}
		return "rejected: " + msg
	case KindTimeout:
		return "timeout: no reply"
	case KindTransportFailure:
		return "transport failure: " + r.CauseText
	}
	return string(r.Kind)
}

func hash(body []byte) uint32 {
	if len(body) == 0 {
		return 0
	}
	return murmur3.Sum32(body)
}
