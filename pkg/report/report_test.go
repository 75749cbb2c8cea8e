package report

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/classify"
	"github.com/waftester/chatprobe/pkg/jsonutil"
	"github.com/waftester/chatprobe/pkg/probe"
	"github.com/waftester/chatprobe/pkg/runner"
	"github.com/waftester/chatprobe/pkg/transport"
	"github.com/waftester/chatprobe/pkg/ui"
	"github.com/waftester/chatprobe/pkg/websocket"
)

func init() {
	ui.SetNoColor(true)
}

func cand(i int, name string) candidate.Candidate {
	return candidate.Candidate{
		Operation: "create_chat", Index: i, Name: name,
		Kind: candidate.KindHTTP, Method: "POST", Path: "/api/v1/chat/chats",
	}
}

func succeeded() *runner.Report {
	winner := cand(2, "participant_ids")
	start := time.Date(2025, 7, 25, 12, 0, 0, 0, time.UTC)
	return &runner.Report{
		RunID:      "run-1",
		Operation:  "create_chat",
		State:      runner.StateSucceeded,
		Identifier: "c1",
		Winner:     &winner,
		Candidates: 7,
		Attempts: []runner.Attempt{
			{Candidate: cand(0, "user_id"), Result: probe.Rejected("participant_ids required", []byte("participant_ids required"), 422), Decision: classify.Decision{Action: classify.Continue}, DurationMS: 12},
			{Candidate: cand(1, "recipient_id"), Result: probe.Rejected("participant_ids required", []byte("participant_ids required"), 422), Decision: classify.Decision{Action: classify.Continue}, DurationMS: 9},
			{Candidate: winner, Result: probe.Succeeded(map[string]any{"id": "c1"}, []byte(`{"id":"c1"}`), 201), Decision: classify.Decision{Action: classify.StopWithValue, Identifier: "c1"}, DurationMS: 20},
		},
		StartedAt:  start,
		FinishedAt: start.Add(41 * time.Millisecond),
	}
}

func TestWriteConsole_Found(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConsole(&buf, succeeded()))
	out := buf.String()

	assert.Contains(t, out, "[1/7] [user_id] POST /api/v1/chat/chats [recognized_error] [422] [12ms] participant_ids required")
	assert.Contains(t, out, "id=c1")
	assert.Contains(t, out, "4 candidate(s) not tried")
	assert.Contains(t, out, "distinct responses: 2 of 3")
	assert.Contains(t, out, "recognized_error x2")
	assert.Contains(t, out, "[+] participant_ids works: POST /api/v1/chat/chats -> c1")
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		rep  *runner.Report
		want string
	}{
		{&runner.Report{State: runner.StateExhaustedCandidates, Candidates: 3}, "none of 3 candidates worked"},
		{&runner.Report{State: runner.StateAborted, AbortCause: runner.CauseCredentialRejected, AbortReason: "credential rejected: auth"}, "refresh the token"},
		{&runner.Report{State: runner.StateAborted, AbortCause: runner.CauseTransportBudget, AbortReason: "budget"}, "unreachable"},
		{&runner.Report{State: runner.StateAborted, AbortCause: runner.CauseCancelled, AbortReason: "context canceled"}, "cancelled"},
	}
	for _, tt := range tests {
		assert.Contains(t, Verdict(tt.rep), tt.want)
	}
}

func TestWriteJSON(t *testing.T) {
	rep := succeeded()
	rep.Attempts[0].Result = probe.Failed(errors.New("connection refused"))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	doc, ok := jsonutil.Object(buf.Bytes())
	require.True(t, ok, buf.String())
	assert.Equal(t, "succeeded", doc["state"])
	assert.Equal(t, "c1", doc["identifier"])

	attempts := doc["attempts"].([]any)
	require.Len(t, attempts, 3)
	first := attempts[0].(map[string]any)["result"].(map[string]any)
	assert.Equal(t, "transport_failure", first["kind"])
	assert.Equal(t, "connection refused", first["cause"])
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, succeeded()))
	out := buf.String()
	assert.Contains(t, out, "CANDIDATE")
	assert.Contains(t, out, "participant_ids")
	assert.Contains(t, out, "SUCCEEDED")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWrite_NeverShowsCredential(t *testing.T) {
	const secret = "opaque+secret/value"
	upgrader := gorilla.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != secret {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	table, err := candidate.Builtin()
	require.NoError(t, err)
	cands, err := table.Generate("ws_connect", candidate.Vars{UserID: "u1", Token: secret, RandomID: "r1"})
	require.NoError(t, err)
	s, err := probe.NewSession(probe.SessionConfig{BaseURL: srv.URL, Credential: secret})
	require.NoError(t, err)

	run := runner.New(transport.NewConnect(websocket.Dialer{}))
	run.Rules = classify.DefaultRules().WithExtract([]string{"url"})
	rep, err := run.Run(context.Background(), "ws_connect", s, cands)
	require.NoError(t, err)
	require.Equal(t, runner.StateSucceeded, rep.State)
	require.Equal(t, "query-user-path", rep.Winner.Name)

	for _, f := range []Format{FormatConsole, FormatJSON, FormatTable} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, f, rep))
		out := buf.String()
		assert.NotContains(t, out, secret, "format %s", f)
		assert.NotContains(t, out, url.QueryEscape(secret), "format %s", f)
		assert.Contains(t, out, probe.Redaction, "format %s", f)
	}
}
