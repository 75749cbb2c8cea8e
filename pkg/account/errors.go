package account

import "errors"

// Sentinel errors for peer bootstrap failure modes.
var (
	// ErrSignup indicates the server refused to create the account.
	ErrSignup = errors.New("account: signup failed")

	// ErrLogin indicates the server answered the login request but did not
	// issue a token.
	ErrLogin = errors.New("account: login failed")
)
