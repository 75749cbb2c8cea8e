package probe

import "errors"

// Sentinel errors for session construction.
var (
	// ErrNoAddress indicates the session has no base address.
	ErrNoAddress = errors.New("probe: base address is required")

	// ErrNoCredential indicates the session has no bearer credential.
	ErrNoCredential = errors.New("probe: bearer credential is required")

	// ErrBadAddress indicates an address that does not parse as an
	// absolute http(s) or ws(s) URL.
	ErrBadAddress = errors.New("probe: invalid address")
)
