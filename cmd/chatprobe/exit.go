package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/waftester/chatprobe/pkg/account"
	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/config"
	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/hosterrors"
	"github.com/waftester/chatprobe/pkg/probe"
	"github.com/waftester/chatprobe/pkg/runner"
)

// codedError pins an error to an exit code when its type alone does not
// say which one applies.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

func usageError(format string, args ...any) error {
	return withCode(defaults.ExitUserError, fmt.Errorf(format, args...))
}

// exitCode maps an error returned by a subcommand to the process exit code.
func exitCode(err error) int {
	var ce *codedError
	switch {
	case err == nil:
		return defaults.ExitSuccess
	case errors.As(err, &ce):
		return ce.code
	case errors.Is(err, context.Canceled):
		return defaults.ExitCancelled
	case errors.Is(err, config.ErrMissingRequired),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, candidate.ErrUnknownOperation),
		errors.Is(err, candidate.ErrInvalidTable),
		errors.Is(err, candidate.ErrTemplate),
		errors.Is(err, probe.ErrNoAddress),
		errors.Is(err, probe.ErrNoCredential),
		errors.Is(err, probe.ErrBadAddress):
		return defaults.ExitUserError
	case errors.Is(err, account.ErrLogin), errors.Is(err, account.ErrSignup):
		return defaults.ExitCredentialFail
	case hosterrors.IsNetworkError(err):
		return defaults.ExitNetworkError
	}
	return defaults.ExitInternalError
}

// outcomeCode maps the final run outcome to the process exit code.
func outcomeCode(o runner.Outcome) int {
	switch o {
	case runner.OutcomeFound:
		return defaults.ExitSuccess
	case runner.OutcomeNoneWorked:
		return defaults.ExitExhausted
	case runner.OutcomeCredentialRejected:
		return defaults.ExitCredentialFail
	case runner.OutcomeUnreachable:
		return defaults.ExitNetworkError
	case runner.OutcomeCancelled:
		return defaults.ExitCancelled
	}
	return defaults.ExitInternalError
}
