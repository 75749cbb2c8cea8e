// Package transport performs exactly one network exchange per candidate and
// maps what came back to a probe.Result. Adapters never retry; trying
// something else is the runner's job.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/probe"
)

// Transport attempts one candidate against a session.
type Transport interface {
	Attempt(ctx context.Context, c candidate.Candidate, s *probe.Session, timeout time.Duration) probe.Result
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, c candidate.Candidate, s *probe.Session, timeout time.Duration) probe.Result

// Attempt calls f.
func (f Func) Attempt(ctx context.Context, c candidate.Candidate, s *probe.Session, timeout time.Duration) probe.Result {
	return f(ctx, c, s, timeout)
}

// Mux routes each candidate to the adapter for its kind. A nil adapter
// yields a TransportFailure for candidates of that kind.
type Mux struct {
	HTTP    Transport
	Message Transport
	Connect Transport
}

// Attempt implements Transport.
func (m *Mux) Attempt(ctx context.Context, c candidate.Candidate, s *probe.Session, timeout time.Duration) probe.Result {
	var t Transport
	switch c.Kind {
	case candidate.KindHTTP:
		t = m.HTTP
	case candidate.KindMessage:
		t = m.Message
		if t == nil {
			return probe.Failed(ErrNoStream)
		}
	case candidate.KindConnect:
		t = m.Connect
	}
	if t == nil {
		return probe.Failed(fmt.Errorf("%w: %q", ErrUnsupportedKind, c.Kind))
	}
	return t.Attempt(ctx, c, s, timeout)
}

// timedOut reports whether err came from the attempt's own deadline rather
// than the caller's context ending.
func timedOut(parent, attempt context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(attempt.Err(), context.DeadlineExceeded)
}
