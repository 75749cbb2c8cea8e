package runner

import (
	"time"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/classify"
	"github.com/waftester/chatprobe/pkg/probe"
)

// State is a probe run's state.
type State string

const (
	StateReady               State = "ready"
	StateAttempting          State = "attempting"
	StateSucceeded           State = "succeeded"
	StateExhaustedCandidates State = "exhausted_candidates"
	StateAborted             State = "aborted"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhaustedCandidates || s == StateAborted
}

// AbortCause says why a run was aborted.
type AbortCause string

const (
	CauseNone               AbortCause = ""
	CauseCredentialRejected AbortCause = "credential_rejected"
	CauseTransportBudget    AbortCause = "transport_budget"
	CauseCancelled          AbortCause = "cancelled"
	CauseClassifier         AbortCause = "classifier"
)

// Attempt records one candidate tried and what came of it.
type Attempt struct {
	Candidate candidate.Candidate `json:"candidate"`
	Result    probe.Result        `json:"result"`
	Decision  classify.Decision   `json:"decision"`

	// ConsecutiveFailures is the transport failure streak after this attempt.
	ConsecutiveFailures int `json:"consecutive_failures,omitempty"`

	DurationMS int64 `json:"duration_ms"`
}

// Report is the structured outcome of one run.
type Report struct {
	RunID     string `json:"run_id"`
	Operation string `json:"operation"`
	State     State  `json:"state"`

	// Identifier is what the winning attempt's extraction rules found.
	Identifier string `json:"identifier,omitempty"`

	// Winner is the candidate that succeeded.
	Winner *candidate.Candidate `json:"winner,omitempty"`

	AbortCause  AbortCause `json:"abort_cause,omitempty"`
	AbortReason string     `json:"abort_reason,omitempty"`

	// Candidates is how many candidates the run was given.
	Candidates int       `json:"candidates"`
	Attempts   []Attempt `json:"attempts"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Outcome is the operator-facing verdict of a run.
type Outcome string

const (
	// OutcomeFound: a working shape was found.
	OutcomeFound Outcome = "found"
	// OutcomeNoneWorked: every candidate was tried and none succeeded.
	OutcomeNoneWorked Outcome = "none_worked"
	// OutcomeCredentialRejected: the server rejected the credential.
	OutcomeCredentialRejected Outcome = "credential_rejected"
	// OutcomeUnreachable: the transport failure budget ran out.
	OutcomeUnreachable Outcome = "unreachable"
	// OutcomeCancelled: the run was stopped before it finished.
	OutcomeCancelled Outcome = "cancelled"
)

// Outcome maps the terminal state to the action the operator needs.
func (r *Report) Outcome() Outcome {
	switch r.State {
	case StateSucceeded:
		return OutcomeFound
	case StateExhaustedCandidates:
		return OutcomeNoneWorked
	}
	switch r.AbortCause {
	case CauseCredentialRejected:
		return OutcomeCredentialRejected
	case CauseCancelled:
		return OutcomeCancelled
	}
	return OutcomeUnreachable
}

// Failures returns every non-success attempt in order.
func (r *Report) Failures() []Attempt {
	var out []Attempt
	for _, a := range r.Attempts {
		if !a.Result.IsSuccess() {
			out = append(out, a)
		}
	}
	return out
}

// Last returns the final attempt, or nil when nothing was tried.
func (r *Report) Last() *Attempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Group is a set of attempts that got byte-identical responses.
type Group struct {
	Hash     uint32
	Kind     probe.Kind
	Status   int
	Summary  string
	Attempts []int
}

// DistinctResponses groups attempts by response fingerprint, in order of
// first appearance. Attempts without a body each form their own group.
func (r *Report) DistinctResponses() []Group {
	var groups []Group
	index := make(map[uint32]int)
	for i, a := range r.Attempts {
		h := a.Result.BodyHash
		if h != 0 {
			if g, ok := index[h]; ok {
				groups[g].Attempts = append(groups[g].Attempts, i)
				continue
			}
			index[h] = len(groups)
		}
		groups = append(groups, Group{
			Hash:     h,
			Kind:     a.Result.Kind,
			Status:   a.Result.Status,
			Summary:  a.Result.Summary(),
			Attempts: []int{i},
		})
	}
	return groups
}
