// Package defaults provides canonical default values for chatprobe.
// Flag defaults, request headers and well-known backend paths are declared
// here once.
package defaults

// Version is the current chatprobe version
const Version = "0.4.0"

// ToolName is used for the user agent, telemetry service name and banner.
const ToolName = "chatprobe"

// ============================================================================
// PROBE RUN SETTINGS
// ============================================================================

const (
	// FailureBudget is the number of consecutive transport failures that
	// aborts a run (3)
	FailureBudget = 3

	// MaxCandidates caps the size of a single operation's candidate list (256)
	MaxCandidates = 256

	// BootstrapRetries is the attempt count for idempotent bootstrap calls (3)
	BootstrapRetries = 3
)

// ============================================================================
// HTTP
// ============================================================================

const (
	ContentTypeJSON = "application/json"

	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderUserAgent     = "User-Agent"

	// BearerPrefix precedes the credential in the Authorization header.
	BearerPrefix = "Bearer "
)

// ============================================================================
// BACKEND PATHS
// ============================================================================
//
// Paths the chat backend is known to expose. Candidate tables may guess
// others; these are the ones the bootstrap relies on.
// ============================================================================

const (
	PathSignup    = "/api/v1/auth/signup"
	PathLogin     = "/api/v1/auth/login"
	PathWebSocket = "/api/v1/websocket/ws"
)

// ============================================================================
// ENVIRONMENT
// ============================================================================

const (
	EnvToken   = "CHATPROBE_TOKEN"
	EnvBaseURL = "CHATPROBE_BASE_URL"
	EnvWSURL   = "CHATPROBE_WS_URL"
	EnvConfig  = "CHATPROBE_CONFIG"
)

// UserAgent returns the User-Agent sent with every probe request.
func UserAgent() string {
	return ToolName + "/" + Version
}
