// Package classify turns one probe.Result into the runner's next move.
//
// Classification is a pure function of the result, the number of
// consecutive transport failures seen so far, and static Rules. Calling it
// twice with the same arguments always yields the same Decision.
package classify

import (
	"fmt"
	"strings"

	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/probe"
)

// Action is what the runner does after an attempt.
type Action string

const (
	// StopWithValue ends the run successfully.
	StopWithValue Action = "stop_with_value"
	// Continue moves on to the next candidate.
	Continue Action = "continue"
	// AbortAll ends the run without trying the remaining candidates.
	AbortAll Action = "abort_all"
)

// Decision is the classifier's verdict on one attempt.
type Decision struct {
	Action Action `json:"action"`
	// Identifier is set for StopWithValue when an extraction rule matched.
	Identifier string `json:"identifier,omitempty"`
	// Reason explains an AbortAll.
	Reason string `json:"reason,omitempty"`
}

// Rules is the static configuration the classifier applies.
type Rules struct {
	// Extract lists identifier locations in priority order. Each entry is
	// either a dotted field path ("chat.id", "chats.0.id") or a JSONPath
	// expression starting with "$".
	Extract []string `yaml:"extract" json:"extract"`

	// AuthPatterns are case-insensitive substrings that mark a rejection
	// as a credential problem. probe.AuthMessage always does, but only as
	// the whole message.
	AuthPatterns []string `yaml:"auth_patterns" json:"auth_patterns"`

	// Budget is the number of consecutive transport failures that aborts
	// a run. Zero or less never aborts.
	Budget int `yaml:"budget" json:"budget"`
}

// DefaultExtract is the identifier priority used when a table does not
// name its own.
var DefaultExtract = []string{"id", "chat_id", "chat.id"}

// DefaultAuthPatterns match the rejection texts seen from the chat backend.
// They are matched against whole response bodies, so each is specific
// enough not to hit field names like "author_id".
var DefaultAuthPatterns = []string{
	"unauthorized",
	"not authenticated",
	"invalid token",
	"token expired",
	"signature has expired",
}

// DefaultRules returns rules with the default extraction order, auth
// patterns and failure budget.
func DefaultRules() Rules {
	return Rules{
		Extract:      append([]string(nil), DefaultExtract...),
		AuthPatterns: append([]string(nil), DefaultAuthPatterns...),
		Budget:       defaults.FailureBudget,
	}
}

// WithExtract returns a copy of r using the given extraction order. An
// empty list keeps r's order.
func (r Rules) WithExtract(extract []string) Rules {
	if len(extract) > 0 {
		r.Extract = append([]string(nil), extract...)
	}
	return r
}

// Validate compiles every extraction rule.
func (r Rules) Validate() error {
	for _, rule := range r.Extract {
		if _, err := compile(rule); err != nil {
			return err
		}
	}
	return nil
}

// Classify maps a result to a Decision. consecutiveFailures is the number
// of TransportFailures in a row including res itself when res is one.
func (r Rules) Classify(res probe.Result, consecutiveFailures int) Decision {
	switch res.Kind {
	case probe.KindSuccess:
		id, _ := r.Identifier(res.Payload)
		return Decision{Action: StopWithValue, Identifier: id}

	case probe.KindRecognizedError:
		if r.IsAuthMessage(res.Message) {
			return Decision{Action: AbortAll, Reason: "credential rejected: " + res.Message}
		}
		return Decision{Action: Continue}

	case probe.KindTimeout:
		return Decision{Action: Continue}

	case probe.KindTransportFailure:
		if r.Budget > 0 && consecutiveFailures >= r.Budget {
			return Decision{
				Action: AbortAll,
				Reason: fmt.Sprintf("transport failure budget exhausted (%d/%d): %s",
					consecutiveFailures, r.Budget, res.CauseText),
			}
		}
		return Decision{Action: Continue}
	}

	return Decision{Action: AbortAll, Reason: fmt.Sprintf("unknown result kind %q", res.Kind)}
}

// IsAuthMessage reports whether msg is the transports' auth rejection or
// contains one of the auth patterns.
func (r Rules) IsAuthMessage(msg string) bool {
	if strings.EqualFold(strings.TrimSpace(msg), probe.AuthMessage) {
		return true
	}
	lower := strings.ToLower(msg)
	for _, p := range r.AuthPatterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
