package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/classify"
	"github.com/waftester/chatprobe/pkg/probe"
	"github.com/waftester/chatprobe/pkg/transport"
)

// scripted returns canned results in order and records what it was asked.
type scripted struct {
	results []probe.Result
	tried   []string
}

func (s *scripted) Attempt(_ context.Context, c candidate.Candidate, _ *probe.Session, _ time.Duration) probe.Result {
	s.tried = append(s.tried, c.Name)
	return s.results[len(s.tried)-1]
}

func session(t *testing.T) *probe.Session {
	t.Helper()
	s, err := probe.NewSession(probe.SessionConfig{BaseURL: "http://chat.local", Credential: "tok"})
	require.NoError(t, err)
	return s
}

func candidates(names ...string) []candidate.Candidate {
	out := make([]candidate.Candidate, len(names))
	for i, n := range names {
		out[i] = candidate.Candidate{Operation: "create_chat", Index: i, Name: n, Kind: candidate.KindHTTP}
	}
	return out
}

func terminalCount(r *Report) int {
	n := 0
	for _, s := range []State{StateSucceeded, StateExhaustedCandidates, StateAborted} {
		if r.State == s {
			n++
		}
	}
	return n
}

func TestRun_SecondCandidateWins(t *testing.T) {
	tr := &scripted{results: []probe.Result{
		probe.Rejected("user_id not accepted", []byte("bad"), 400),
		probe.Succeeded(map[string]any{"id": "c1"}, []byte(`{"id":"c1"}`), 201),
	}}
	rep, err := New(tr).Run(context.Background(), "create_chat", session(t), candidates("user_id", "recipient_id"))
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, rep.State)
	assert.Equal(t, "c1", rep.Identifier)
	assert.Equal(t, OutcomeFound, rep.Outcome())
	assert.Len(t, rep.Attempts, 2)
	assert.Equal(t, []string{"user_id", "recipient_id"}, tr.tried)
	require.NotNil(t, rep.Winner)
	assert.Equal(t, "recipient_id", rep.Winner.Name)
	assert.Len(t, rep.Failures(), 1)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 1, terminalCount(rep))
}

func TestRun_StopsAtFirstSuccess(t *testing.T) {
	tr := &scripted{results: []probe.Result{
		probe.Succeeded(map[string]any{"chat_id": "c7"}, nil, 200),
		probe.Succeeded(map[string]any{"id": "never"}, nil, 200),
	}}
	rep, err := New(tr).Run(context.Background(), "create_chat", session(t), candidates("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tr.tried)
	assert.Equal(t, "c7", rep.Identifier)
}

func TestRun_AllRejected(t *testing.T) {
	const n = 4
	results := make([]probe.Result, n)
	for i := range results {
		results[i] = probe.Rejected("not found", []byte("not found"), 404)
	}
	tr := &scripted{results: results}
	rep, err := New(tr).Run(context.Background(), "create_chat", session(t), candidates("a", "b", "c", "d"))
	require.NoError(t, err)

	assert.Equal(t, StateExhaustedCandidates, rep.State)
	assert.Equal(t, OutcomeNoneWorked, rep.Outcome())
	assert.Len(t, rep.Attempts, n)
	assert.Len(t, rep.Failures(), n)
	assert.Empty(t, rep.Identifier)

	groups := rep.DistinctResponses()
	require.Len(t, groups, 1)
	assert.Equal(t, []int{0, 1, 2, 3}, groups[0].Attempts)
}

func TestRun_AuthAbortsImmediately(t *testing.T) {
	tr := &scripted{results: []probe.Result{
		probe.Rejected("unauthorized", nil, 400),
		probe.Succeeded(map[string]any{"id": "never"}, nil, 200),
	}}
	rep, err := New(tr).Run(context.Background(), "create_chat", session(t), candidates("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, StateAborted, rep.State)
	assert.Equal(t, CauseCredentialRejected, rep.AbortCause)
	assert.Equal(t, OutcomeCredentialRejected, rep.Outcome())
	assert.Len(t, rep.Attempts, 1)
	assert.Contains(t, rep.AbortReason, "unauthorized")
}

func TestRun_TimeoutContinues(t *testing.T) {
	tr := &scripted{results: []probe.Result{
		probe.TimedOut(),
		probe.Succeeded(map[string]any{"id": "m1"}, nil, 0),
	}}
	rep, err := New(tr).Run(context.Background(), "ws_message_types", session(t), candidates("ping", "list_chats"))
	require.NoError(t, err)

	assert.Equal(t, probe.KindTimeout, rep.Attempts[0].Result.Kind)
	assert.Equal(t, classify.Continue, rep.Attempts[0].Decision.Action)
	assert.Equal(t, StateSucceeded, rep.State)
}

func TestRun_TransportBudget(t *testing.T) {
	fail := probe.Failed(errors.New("connection refused"))
	tr := &scripted{results: []probe.Result{fail, fail, fail, fail, fail}}
	rep, err := New(tr).Run(context.Background(), "create_chat", session(t), candidates("a", "b", "c", "d", "e"))
	require.NoError(t, err)

	assert.Equal(t, StateAborted, rep.State)
	assert.Equal(t, CauseTransportBudget, rep.AbortCause)
	assert.Equal(t, OutcomeUnreachable, rep.Outcome())
	require.Len(t, rep.Attempts, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{
		rep.Attempts[0].ConsecutiveFailures,
		rep.Attempts[1].ConsecutiveFailures,
		rep.Attempts[2].ConsecutiveFailures,
	})
}

func TestRun_AnswerResetsBudget(t *testing.T) {
	fail := probe.Failed(errors.New("eof"))
	no := probe.Rejected("nope", nil, 404)
	tr := &scripted{results: []probe.Result{fail, fail, no, fail, fail, no}}
	rep, err := New(tr).Run(context.Background(), "create_chat", session(t), candidates("a", "b", "c", "d", "e", "f"))
	require.NoError(t, err)

	assert.Equal(t, StateExhaustedCandidates, rep.State)
	assert.Len(t, rep.Attempts, 6)
}

func TestRun_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tried int
	tr := transport.Func(func(context.Context, candidate.Candidate, *probe.Session, time.Duration) probe.Result {
		tried++
		cancel()
		return probe.Rejected("nope", nil, 404)
	})
	rep, err := New(tr).Run(ctx, "create_chat", session(t), candidates("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, 1, tried)
	assert.Equal(t, StateAborted, rep.State)
	assert.Equal(t, CauseCancelled, rep.AbortCause)
	assert.Equal(t, OutcomeCancelled, rep.Outcome())
	assert.Len(t, rep.Attempts, 1)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &scripted{}
	rep, err := New(tr).Run(ctx, "create_chat", session(t), candidates("a"))
	require.NoError(t, err)
	assert.Empty(t, tr.tried)
	assert.Equal(t, StateAborted, rep.State)
	assert.Nil(t, rep.Last())
}

func TestRun_OnAttemptAndPacing(t *testing.T) {
	tr := &scripted{results: []probe.Result{
		probe.TimedOut(), probe.TimedOut(), probe.TimedOut(),
	}}
	r := New(tr)
	r.Limiter = rate.NewLimiter(rate.Every(time.Millisecond), 1)

	var seen []int
	r.OnAttempt = func(a Attempt) { seen = append(seen, a.Candidate.Index) }

	rep, err := r.Run(context.Background(), "op", session(t), candidates("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, StateExhaustedCandidates, rep.State)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
}

func TestRun_Misuse(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), "op", session(t), candidates("a"))
	assert.ErrorIs(t, err, ErrNoTransport)

	r := New(&scripted{})
	_, err = r.Run(context.Background(), "op", nil, candidates("a"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRun_NoCandidatesIsExhausted(t *testing.T) {
	tr := &scripted{}
	rep, err := New(tr).Run(context.Background(), "op", session(t), nil)
	require.NoError(t, err)

	assert.Equal(t, StateExhaustedCandidates, rep.State)
	assert.Equal(t, OutcomeNoneWorked, rep.Outcome())
	assert.Empty(t, rep.Attempts)
	assert.Empty(t, tr.tried)
	assert.Equal(t, 1, terminalCount(rep))
}

func TestRun_AtMostNAttempts(t *testing.T) {
	kinds := []probe.Result{
		probe.TimedOut(),
		probe.Rejected("x", nil, 400),
		probe.Failed(errors.New("reset")),
	}
	for n := 1; n <= 6; n++ {
		results := make([]probe.Result, n)
		names := make([]string, n)
		for i := range results {
			results[i] = kinds[i%len(kinds)]
			names[i] = string(rune('a' + i))
		}
		rep, err := New(&scripted{results: results}).Run(context.Background(), "op", session(t), candidates(names...))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(rep.Attempts), n)
		assert.Equal(t, 1, terminalCount(rep))
		for i := 0; i < len(rep.Attempts)-1; i++ {
			assert.Equal(t, classify.Continue, rep.Attempts[i].Decision.Action)
		}
	}
}

func TestRun_KindTimeouts(t *testing.T) {
	got := map[string]time.Duration{}
	tr := transport.Func(func(_ context.Context, c candidate.Candidate, _ *probe.Session, timeout time.Duration) probe.Result {
		got[c.Name] = timeout
		return probe.TimedOut()
	})
	cands := candidates("http", "message")
	cands[1].Kind = candidate.KindMessage

	r := New(tr)
	r.Timeout = time.Second
	r.KindTimeouts = map[candidate.Kind]time.Duration{candidate.KindMessage: 250 * time.Millisecond}
	rep, err := r.Run(context.Background(), "mixed", session(t), cands)
	require.NoError(t, err)

	assert.Equal(t, StateExhaustedCandidates, rep.State)
	assert.Equal(t, time.Second, got["http"])
	assert.Equal(t, 250*time.Millisecond, got["message"])
}

func TestRun_RecordsRedactedCredential(t *testing.T) {
	const secret = "s3cr3t+token"
	s, err := probe.NewSession(probe.SessionConfig{BaseURL: "http://chat.local", Credential: secret})
	require.NoError(t, err)

	var sent []string
	tr := transport.Func(func(_ context.Context, c candidate.Candidate, _ *probe.Session, _ time.Duration) probe.Result {
		sent = append(sent, c.Path)
		if len(sent) == 1 {
			return probe.Rejected("bad token "+secret, []byte("echo "+secret), 400)
		}
		return probe.Succeeded(map[string]any{"id": "c1"}, nil, 201)
	})
	cands := []candidate.Candidate{
		{Name: "query", Kind: candidate.KindHTTP, Path: "/chats?token=s3cr3t%2Btoken"},
		{Index: 1, Name: "body", Kind: candidate.KindHTTP, Path: "/chats", Body: map[string]any{"token": secret}},
	}

	rep, err := New(tr).Run(context.Background(), "create_chat", s, cands)
	require.NoError(t, err)

	assert.Equal(t, "/chats?token=s3cr3t%2Btoken", sent[0], "transport gets the real credential")
	assert.Equal(t, "/chats?token=REDACTED", rep.Attempts[0].Candidate.Path)
	assert.Equal(t, "bad token REDACTED", rep.Attempts[0].Result.Message)
	assert.Equal(t, "echo REDACTED", rep.Attempts[0].Result.Body)
	require.NotNil(t, rep.Winner)
	assert.Equal(t, map[string]any{"token": probe.Redaction}, rep.Winner.Body)
	assert.Equal(t, map[string]any{"token": secret}, cands[1].Body, "input candidates untouched")
}
