// Package runner drives one probe run: candidates are tried strictly in
// order, one at a time, and the first success ends the run.
//
// The run is a small state machine:
//
//	Ready -> Attempting -> Succeeded
//	                    -> Attempting          (Continue, candidates left)
//	                    -> ExhaustedCandidates (Continue, none left)
//	                    -> Aborted             (AbortAll or cancellation)
//
// Probe failures are data, not errors: every attempt lands in the Report.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/classify"
	"github.com/waftester/chatprobe/pkg/duration"
	"github.com/waftester/chatprobe/pkg/hosterrors"
	"github.com/waftester/chatprobe/pkg/probe"
	"github.com/waftester/chatprobe/pkg/transport"
)

// tracerName scopes runner spans.
const tracerName = "chatprobe/runner"

// Runner executes probe runs. A Runner may be reused for several runs but
// runs must not overlap: each one owns its session for its duration.
type Runner struct {
	// Transport performs the attempts.
	Transport transport.Transport

	// Rules classify each result.
	Rules classify.Rules

	// Timeout bounds each attempt (default: 5s).
	Timeout time.Duration

	// KindTimeouts overrides Timeout per candidate kind.
	KindTimeouts map[candidate.Kind]time.Duration

	// Limiter paces attempts. Nil means back-to-back.
	Limiter *rate.Limiter

	// Logger receives state transitions. Nil means slog.Default().
	Logger *slog.Logger

	// Tracer records a span per run and per attempt. Nil means the global
	// provider's tracer.
	Tracer trace.Tracer

	// OnAttempt is called after every attempt, before the next begins.
	OnAttempt func(Attempt)
}

// New creates a runner with default rules and timeout.
func New(t transport.Transport) *Runner {
	return &Runner{
		Transport: t,
		Rules:     classify.DefaultRules(),
		Timeout:   duration.AttemptDefault,
	}
}

// run is the per-run state.
type run struct {
	r      *Runner
	log    *slog.Logger
	state  State
	streak hosterrors.Streak
	report *Report
}

// Run tries candidates in order against session. The returned error is
// non-nil only for misuse; every probe outcome is in the Report, which
// always ends in exactly one terminal state.
func (r *Runner) Run(ctx context.Context, operation string, session *probe.Session, candidates []candidate.Candidate) (*Report, error) {
	if r.Transport == nil {
		return nil, ErrNoTransport
	}
	if session == nil {
		return nil, ErrNoSession
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = duration.AttemptDefault
	}

	tracer := r.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	rep := &Report{
		RunID:      uuid.NewString(),
		Operation:  operation,
		State:      StateReady,
		Candidates: len(candidates),
		Attempts:   make([]Attempt, 0, len(candidates)),
		StartedAt:  time.Now(),
	}
	st := &run{
		r:      r,
		log:    orDefault(r.Logger).With(slog.String("run_id", rep.RunID), slog.String("operation", operation)),
		state:  StateReady,
		report: rep,
	}

	ctx, span := tracer.Start(ctx, "chatprobe.run", trace.WithAttributes(
		attribute.String("run_id", rep.RunID),
		attribute.String("operation", operation),
		attribute.Int("candidates", len(candidates)),
	))
	defer span.End()

	st.log.Info("probe run started", slog.Int("candidates", len(candidates)))

	for i, c := range candidates {
		if err := st.wait(ctx); err != nil {
			st.abort(CauseCancelled, err.Error())
			break
		}
		st.transition(StateAttempting)

		a := st.attempt(ctx, tracer, c, session, r.timeoutFor(c.Kind, timeout))
		rep.Attempts = append(rep.Attempts, a)
		if r.OnAttempt != nil {
			r.OnAttempt(a)
		}

		switch a.Decision.Action {
		case classify.StopWithValue:
			rep.Identifier = a.Decision.Identifier
			winner := a.Candidate
			rep.Winner = &winner
			st.transition(StateSucceeded)
		case classify.AbortAll:
			st.abort(causeOf(a.Result), a.Decision.Reason)
		case classify.Continue:
			if i == len(candidates)-1 {
				st.transition(StateExhaustedCandidates)
			}
		}
		if st.state.Terminal() {
			break
		}
	}

	// No candidates means nothing was left to try.
	if !st.state.Terminal() {
		st.transition(StateExhaustedCandidates)
	}
	rep.State = st.state
	rep.FinishedAt = time.Now()

	span.SetAttributes(
		attribute.String("state", string(rep.State)),
		attribute.Int("attempts", len(rep.Attempts)),
	)
	if rep.State == StateSucceeded {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(rep.Outcome()))
	}

	st.log.Info("probe run finished",
		slog.String("state", string(rep.State)),
		slog.Int("attempts", len(rep.Attempts)),
		slog.String("identifier", rep.Identifier),
		slog.Duration("elapsed", rep.Duration()),
	)
	return rep, nil
}

func (r *Runner) timeoutFor(kind candidate.Kind, fallback time.Duration) time.Duration {
	if d, ok := r.KindTimeouts[kind]; ok && d > 0 {
		return d
	}
	return fallback
}

// wait is the cooperative cancellation point before each attempt.
func (st *run) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if st.r.Limiter != nil {
		if err := st.r.Limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
	return nil
}

func (st *run) attempt(ctx context.Context, tracer trace.Tracer, c candidate.Candidate, s *probe.Session, timeout time.Duration) Attempt {
	actx, span := tracer.Start(ctx, "chatprobe.attempt", trace.WithAttributes(
		attribute.String("candidate", c.Name),
		attribute.Int("index", c.Index),
		attribute.String("kind", string(c.Kind)),
	))
	defer span.End()

	start := time.Now()
	res := st.r.Transport.Attempt(actx, c, s, timeout)
	elapsed := time.Since(start)
	res = res.WithElapsed(elapsed)

	var consecutive int
	if res.Kind == probe.KindTransportFailure {
		consecutive = st.streak.Fail()
	} else {
		st.streak.Reset()
	}
	d := st.r.Rules.Classify(res, consecutive)

	secret := s.Credential()
	res = res.Redacted(secret)
	d.Reason = probe.Redact(d.Reason, secret)

	span.SetAttributes(
		attribute.String("result", string(res.Kind)),
		attribute.String("decision", string(d.Action)),
	)
	if res.Status != 0 {
		span.SetAttributes(attribute.Int("status", res.Status))
	}
	if res.Kind == probe.KindTransportFailure && res.Cause != nil {
		span.RecordError(res.Cause)
	}

	st.log.Debug("attempt finished",
		slog.Int("index", c.Index),
		slog.String("candidate", c.Name),
		slog.String("result", res.Summary()),
		slog.String("decision", string(d.Action)),
		slog.Duration("elapsed", elapsed),
	)

	return Attempt{
		Candidate:           c.Redacted(secret),
		Result:              res,
		Decision:            d,
		ConsecutiveFailures: consecutive,
		DurationMS:          elapsed.Milliseconds(),
	}
}

func (st *run) transition(next State) {
	if st.state == next {
		return
	}
	st.log.Debug("state transition", slog.String("from", string(st.state)), slog.String("to", string(next)))
	st.state = next
}

func (st *run) abort(cause AbortCause, reason string) {
	st.report.AbortCause = cause
	st.report.AbortReason = reason
	st.log.Warn("probe run aborted", slog.String("cause", string(cause)), slog.String("reason", reason))
	st.transition(StateAborted)
}

func causeOf(res probe.Result) AbortCause {
	switch res.Kind {
	case probe.KindRecognizedError:
		return CauseCredentialRejected
	case probe.KindTransportFailure:
		if errors.Is(res.Cause, context.Canceled) {
			return CauseCancelled
		}
		return CauseTransportBudget
	}
	return CauseClassifier
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
