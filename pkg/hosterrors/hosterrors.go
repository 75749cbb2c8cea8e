// Package hosterrors recognises network-level failures and counts them
// against the host under probe. Any answer from the host resets the count;
// the limit itself belongs to whoever reads the count.
//
// Usage:
//
//	var streak hosterrors.Streak
//	if hosterrors.IsNetworkError(err) {
//	    n := streak.Fail()
//	    ...
//	} else {
//	    streak.Reset()
//	}
package hosterrors

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

// Streak counts consecutive transport failures. The zero value is ready to
// use. A Streak belongs to one probe run and is not shared.
type Streak struct {
	n int
}

// Fail records one failure and returns the consecutive count.
func (s *Streak) Fail() int {
	s.n++
	return s.n
}

// Reset clears the count after the host answered.
func (s *Streak) Reset() {
	s.n = 0
}

// Count returns the current run of failures.
func (s *Streak) Count() int { return s.n }

// IsNetworkError returns true if the error is a network-level error that
// indicates the host could not be talked to at all, as opposed to an
// application-level rejection.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkIndicators := []string{
		"connection refused",
		"no such host",
		"no route to host",
		"network is unreachable",
		"i/o timeout",
		"dial tcp",
		"tls handshake timeout",
		"connection reset",
		"broken pipe",
		"bad handshake",
	}
	for _, indicator := range networkIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
