package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/chatprobe/pkg/probe"
)

func TestClassify_Success(t *testing.T) {
	r := DefaultRules()

	d := r.Classify(probe.Succeeded(map[string]any{"id": "c1"}, nil, 201), 0)
	assert.Equal(t, Decision{Action: StopWithValue, Identifier: "c1"}, d)

	// A worked shape stops even when no rule finds an id.
	d = r.Classify(probe.Succeeded(map[string]any{"ok": true}, nil, 200), 0)
	assert.Equal(t, StopWithValue, d.Action)
	assert.Empty(t, d.Identifier)
}

func TestClassify_RecognizedError(t *testing.T) {
	r := DefaultRules()

	tests := []struct {
		msg  string
		want Action
	}{
		{"not found", Continue},
		{"invalid payload: user_id required", Continue},
		{`{"detail":[{"loc":["body","author_id"],"msg":"field required"}]}`, Continue},
		{"authentication_method must be one of: email, phone", Continue},
		{"link expired", Continue},
		{"unauthorized", AbortAll},
		{probe.AuthMessage, AbortAll},
		{"AUTH", AbortAll},
		{"Token EXPIRED", AbortAll},
		{`{"detail":"Not authenticated"}`, AbortAll},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			d := r.Classify(probe.Rejected(tt.msg, nil, 400), 0)
			assert.Equal(t, tt.want, d.Action)
			if tt.want == AbortAll {
				assert.Contains(t, d.Reason, tt.msg)
			}
		})
	}
}

func TestClassify_CustomAuthPatterns(t *testing.T) {
	r := Rules{AuthPatterns: []string{"session gone"}, Budget: 3}
	assert.Equal(t, Continue, r.Classify(probe.Rejected("unauthorized", nil, 0), 0).Action)
	assert.Equal(t, AbortAll, r.Classify(probe.Rejected("Session gone, log in", nil, 0), 0).Action)

	// A 401/403 from a transport aborts whatever the patterns say.
	assert.Equal(t, AbortAll, r.Classify(probe.Rejected(probe.AuthMessage, nil, 401), 0).Action)
}

func TestClassify_ValidationErrorMentioningAuthor(t *testing.T) {
	body := `{"detail":[{"loc":["body","author_id"],"msg":"field required"}]}`
	d := DefaultRules().Classify(probe.Rejected(body, []byte(body), 422), 0)
	assert.Equal(t, Decision{Action: Continue}, d)
}

func TestClassify_Timeout(t *testing.T) {
	d := DefaultRules().Classify(probe.TimedOut(), 0)
	assert.Equal(t, Decision{Action: Continue}, d)
}

func TestClassify_TransportBudget(t *testing.T) {
	r := DefaultRules()
	require.Equal(t, 3, r.Budget)
	res := probe.Failed(errors.New("connection refused"))

	assert.Equal(t, Continue, r.Classify(res, 1).Action)
	assert.Equal(t, Continue, r.Classify(res, 2).Action)

	d := r.Classify(res, 3)
	assert.Equal(t, AbortAll, d.Action)
	assert.Contains(t, d.Reason, "3/3")
	assert.Contains(t, d.Reason, "connection refused")

	unlimited := Rules{Budget: 0}
	assert.Equal(t, Continue, unlimited.Classify(res, 100).Action)
}

func TestClassify_Idempotent(t *testing.T) {
	r := DefaultRules()
	results := []probe.Result{
		probe.Succeeded(map[string]any{"chat": map[string]any{"id": "x"}}, []byte(`{}`), 200),
		probe.Rejected("unauthorized", nil, 401),
		probe.Rejected("nope", nil, 404),
		probe.TimedOut(),
		probe.Failed(errors.New("eof")),
	}
	for _, res := range results {
		for _, n := range []int{0, 1, 3} {
			assert.Equal(t, r.Classify(res, n), r.Classify(res, n))
		}
	}
}

func TestClassify_UnknownKind(t *testing.T) {
	d := DefaultRules().Classify(probe.Result{Kind: "weird"}, 0)
	assert.Equal(t, AbortAll, d.Action)
}
