package jwt

import "errors"

// Sentinel errors for token decoding.
var (
	// ErrMalformed indicates the credential is not a three-segment JWT or
	// its header/payload segments do not decode.
	ErrMalformed = errors.New("jwt: malformed token")

	// ErrNoUserID indicates the payload carries no user identifier claim.
	ErrNoUserID = errors.New("jwt: no user id claim")
)
