package candidate

import "errors"

// Sentinel errors for candidate tables.
var (
	// ErrUnknownOperation indicates the table has no operation by that tag.
	ErrUnknownOperation = errors.New("candidate: unknown operation")

	// ErrInvalidTable indicates a table that failed validation.
	ErrInvalidTable = errors.New("candidate: invalid table")

	// ErrTemplate indicates a candidate field whose template did not render.
	ErrTemplate = errors.New("candidate: template error")
)
