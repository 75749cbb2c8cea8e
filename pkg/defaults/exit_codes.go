package defaults

// Exit codes for the CLI. Each terminal probe outcome maps to its own code
// because each one asks the operator for a different action.
const (
	ExitSuccess        = 0 // A candidate worked
	ExitExhausted      = 1 // Every candidate was tried and none worked
	ExitUserError      = 2 // Invalid arguments or configuration
	ExitNetworkError   = 3 // Transport-failure budget exceeded
	ExitInternalError  = 4 // Unexpected internal error
	ExitCredentialFail = 5 // The server rejected the bearer credential
	ExitCancelled      = 6 // Interrupted before a terminal outcome
)
