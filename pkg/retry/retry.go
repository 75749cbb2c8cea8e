// Package retry re-runs an idempotent call with capped backoff.
//
// Only requests without server-side effects belong here. Account login is
// retried; signup is not, since a lost response may still have created the
// user.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
//	    return login(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/duration"
)

// Strategy defines how the delay grows between attempts.
type Strategy int

const (
	// Exponential doubles the delay each attempt.
	Exponential Strategy = iota
	// Constant waits InitDelay between every attempt.
	Constant
)

// Config controls retry behaviour.
type Config struct {
	MaxAttempts int           // Total attempts including the first. 0 means fn never runs.
	InitDelay   time.Duration // Delay before the first retry.
	MaxDelay    time.Duration // Ceiling for any single delay.
	Strategy    Strategy
	Jitter      bool // Spread each delay by up to 25% either way.

	// OnRetry, when set, observes each failure that will be retried.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig retries bootstrap requests a few times with short
// exponential backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: defaults.BootstrapRetries,
		InitDelay:   duration.RetryFast,
		MaxDelay:    duration.RetryMax,
		Strategy:    Exponential,
		Jitter:      true,
	}
}

// PermanentError marks an error that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts
// run out or ctx is done. The returned error is fn's last error, unwrapped
// from PermanentError, or ctx.Err().
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	return do(ctx, cfg, fn, sleep)
}

func do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, wait sleepFunc) error {
	var last error
	for attempt := range cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		var p *PermanentError
		if errors.As(last, &p) {
			return p.Err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}
		delay := Delay(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, last, delay)
		}
		if err := wait(ctx, delay); err != nil {
			return err
		}
	}
	return last
}

// Delay returns the wait after the given 0-indexed attempt. The result is
// never negative and never above MaxDelay when MaxDelay is set.
func Delay(cfg Config, attempt int) time.Duration {
	d := cfg.InitDelay
	if cfg.Strategy == Exponential {
		f := float64(cfg.InitDelay) * math.Pow(2, float64(attempt))
		if math.IsInf(f, 0) || f > float64(math.MaxInt64) {
			d = time.Duration(math.MaxInt64)
		} else {
			d = time.Duration(f)
		}
	}
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	if cfg.Jitter && d > 0 {
		if quarter := int64(d) / 4; quarter > 0 {
			j := time.Duration(rand.Int64N(quarter))
			if rand.IntN(2) == 0 {
				d += j
			} else {
				d -= j
			}
		}
	}
	if d < 0 {
		d = 0
	}
	return d
}
