package transport

import "errors"

// Sentinel errors carried as the cause of a TransportFailure.
var (
	// ErrNoStream indicates a message candidate with no open stream.
	ErrNoStream = errors.New("transport: no message stream established")

	// ErrBadFrame indicates a reply that is not a JSON object.
	ErrBadFrame = errors.New("transport: undecodable reply frame")

	// ErrUnsupportedKind indicates a candidate kind no adapter handles.
	ErrUnsupportedKind = errors.New("transport: unsupported candidate kind")
)
