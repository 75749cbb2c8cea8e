package runner

import "errors"

// Sentinel errors for runner misuse. Probe failures are never returned as
// errors; they are recorded in the Report.
var (
	// ErrNoSession indicates Run was given a nil session.
	ErrNoSession = errors.New("runner: no session")

	// ErrNoTransport indicates a Runner without a transport.
	ErrNoTransport = errors.New("runner: no transport")
)
