package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/jsonutil"
	"github.com/waftester/chatprobe/pkg/probe"
	"github.com/waftester/chatprobe/pkg/websocket"
)

// replyTypeError is the reply type the backend uses for rejections.
const replyTypeError = "error"

// unknownError is the rejection text when an error reply carries none.
const unknownError = "Unknown error"

// Stream is an established duplex connection. *websocket.Conn satisfies it.
type Stream interface {
	Send(v any) error
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Drain() int
}

// Envelope is the message frame the chat channel speaks in both directions.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitzero"`
}

// Message sends message candidates over a stream opened before the run.
type Message struct {
	stream Stream
	logger *slog.Logger
}

// NewMessage wraps an open stream. logger may be nil.
func NewMessage(stream Stream, logger *slog.Logger) *Message {
	if logger == nil {
		logger = slog.Default()
	}
	return &Message{stream: stream, logger: logger}
}

// Attempt implements Transport. It sends one envelope and takes the next
// frame as its reply. Frames left over from earlier attempts are dropped
// first so a late reply is never credited to the wrong candidate.
func (m *Message) Attempt(ctx context.Context, c candidate.Candidate, _ *probe.Session, timeout time.Duration) probe.Result {
	if m.stream == nil {
		return probe.Failed(ErrNoStream)
	}
	if n := m.stream.Drain(); n > 0 {
		m.logger.Debug("dropped stale frames", slog.Int("count", n), slog.String("candidate", c.Name))
	}

	if err := m.stream.Send(Envelope{Type: c.MessageType, Data: c.Data}); err != nil {
		return probe.Failed(err)
	}

	frame, err := m.stream.Receive(ctx, timeout)
	switch {
	case errors.Is(err, websocket.ErrTimeout):
		return probe.TimedOut()
	case err != nil:
		return probe.Failed(err)
	}
	return mapReply(frame)
}

// mapReply decodes one reply frame into a Result.
func mapReply(frame []byte) probe.Result {
	reply, ok := jsonutil.Object(frame)
	if !ok {
		return probe.Failed(fmt.Errorf("%w: %s", ErrBadFrame, truncate(frame)))
	}

	replyType, _ := reply["type"].(string)
	if replyType == replyTypeError {
		return probe.Rejected(errorMessage(reply), frame, 0).WithReplyType(replyType)
	}

	payload := any(reply)
	if data, ok := reply["data"]; ok && data != nil {
		payload = data
	}
	return probe.Succeeded(payload, frame, 0).WithReplyType(replyType)
}

// errorMessage pulls the rejection text out of an error reply: data.message,
// then a bare string data, then a top-level message.
func errorMessage(reply map[string]any) string {
	switch data := reply["data"].(type) {
	case map[string]any:
		if msg, ok := data["message"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if data != "" {
			return data
		}
	}
	if msg, ok := reply["message"].(string); ok && msg != "" {
		return msg
	}
	return unknownError
}

func truncate(frame []byte) string {
	const max = 64
	if len(frame) > max {
		return string(frame[:max]) + "..."
	}
	return string(frame)
}
