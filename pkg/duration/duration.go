// Package duration provides canonical time constants for chatprobe.
// Every timeout, delay and interval used by the probe harness is declared
// here so that flag defaults, transports and tests agree.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.ContextShort)
//	fs.Duration("timeout", duration.AttemptDefault, "per-attempt timeout")
package duration

import "time"

// ============================================================================
// PROBE ATTEMPTS
// ============================================================================
//
// One attempt is one request (HTTP) or one send-and-await-reply exchange
// (WebSocket message). The bound covers the whole exchange.
// ============================================================================

const (
	// AttemptDefault is the per-attempt timeout used when none is given (5s)
	AttemptDefault = 5 * time.Second

	// AttemptMessage is the reply wait for a single WebSocket message (3s)
	AttemptMessage = 3 * time.Second

	// AttemptMax caps user supplied per-attempt timeouts (2min)
	AttemptMax = 2 * time.Minute
)

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================

const (
	// HTTPProbing is the client-level ceiling for probe requests (30s)
	HTTPProbing = 30 * time.Second

	// HTTPBootstrap is for the signup/login calls that mint a peer account (15s)
	HTTPBootstrap = 15 * time.Second
)

// ============================================================================
// CONTEXT/OPERATION TIMEOUTS
// ============================================================================

const (
	// ContextShort is for quick operations such as whoami (30s)
	ContextShort = 30 * time.Second

	// ContextMedium bounds a full probe run (5min)
	ContextMedium = 5 * time.Minute

	// ShutdownGrace is how long a second interrupt is awaited before exit (10s)
	ShutdownGrace = 10 * time.Second
)

// ============================================================================
// RETRY / PACING
// ============================================================================

const (
	// RetryFast is the base delay for bootstrap retries (500ms)
	RetryFast = 500 * time.Millisecond

	// RetryMax caps any single bootstrap retry delay (5s)
	RetryMax = 5 * time.Second

	// PaceNone disables pacing between attempts
	PaceNone time.Duration = 0
)

// ============================================================================
// NETWORK/TRANSPORT
// ============================================================================

const (
	// DialTimeout is for establishing TCP connections (10s)
	DialTimeout = 10 * time.Second

	// KeepAlive is for TCP keep-alive interval (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is for idle connection pool timeout (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is for TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second

	// WSHandshake bounds the WebSocket upgrade exchange (10s)
	WSHandshake = 10 * time.Second

	// WSCloseWait is how long a close frame may take to write (1s)
	WSCloseWait = 1 * time.Second
)

// ============================================================================
// TELEMETRY
// ============================================================================

const (
	// MetricsReadTimeout is the metrics server read timeout (5s)
	MetricsReadTimeout = 5 * time.Second

	// MetricsWriteTimeout is the metrics server write timeout (10s)
	MetricsWriteTimeout = 10 * time.Second

	// TelemetryShutdown bounds exporter and server shutdown (5s)
	TelemetryShutdown = 5 * time.Second

	// TelemetryConnect bounds the OTLP exporter connection (10s)
	TelemetryConnect = 10 * time.Second
)
