// Package cli holds the process plumbing shared by chatprobe subcommands:
// interrupt handling and the diagnostic logger.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waftester/chatprobe/pkg/defaults"
)

// SignalContext returns a context cancelled on SIGINT/SIGTERM. The probe
// run stops before its next attempt; a second signal within gracePeriod
// exits immediately with the cancelled exit code.
//
//	ctx, cancel := cli.SignalContext(context.Background(), duration.ShutdownGrace, os.Stderr)
//	defer cancel()
func SignalContext(parent context.Context, gracePeriod time.Duration, w io.Writer) (context.Context, context.CancelFunc) {
	return signalContext(parent, gracePeriod, w, nil, nil)
}

// signalContext takes a signal channel and exit func so tests can drive it.
func signalContext(
	parent context.Context,
	gracePeriod time.Duration,
	w io.Writer,
	sigChan chan os.Signal,
	exitFn func(int),
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	ownChannel := sigChan == nil
	if ownChannel {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}
	if exitFn == nil {
		exitFn = os.Exit
	}
	if w == nil {
		w = io.Discard
	}

	go func() {
		defer func() {
			if ownChannel {
				signal.Stop(sigChan)
			}
		}()
		select {
		case sig := <-sigChan:
			fmt.Fprintf(w, "\n%s received, finishing the current attempt...\n", sig)
			cancel()

			t := time.NewTimer(gracePeriod)
			defer t.Stop()
			select {
			case <-sigChan:
				exitFn(defaults.ExitCancelled)
			case <-t.C:
			}
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// NewLogger returns the text logger subcommands report diagnostics to.
// Verbose lowers the level to debug, which includes every attempt and
// state transition.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
