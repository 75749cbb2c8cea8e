package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/waftester/chatprobe/pkg/config"
	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/jwt"
	"github.com/waftester/chatprobe/pkg/ui"
)

// profileOperation is the table operation whoami probes.
const profileOperation = "get_profile"

// runWhoami decodes the credential and then probes the profile endpoints.
// An expired credential is reported without sending anything.
func runWhoami(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	cfg, err := loadConfig("whoami", args, stderr, func(c *config.Config) {
		if c.Operation == "" {
			c.Operation = profileOperation
		}
	})
	if err != nil {
		return 0, err
	}
	ui.SetNoColor(cfg.NoColor)
	if cfg.Token == "" {
		return 0, fmt.Errorf("%w: bearer credential (-token or %s)", config.ErrMissingRequired, defaults.EnvToken)
	}

	tok, err := jwt.Decode(cfg.Token)
	if err != nil {
		ui.PrintWarning("credential is not a JWT, user id unknown: " + err.Error())
	} else if expired := describeToken(stdout, tok, time.Now()); expired {
		return defaults.ExitCredentialFail, nil
	}

	if cfg.BaseURL == "" {
		return defaults.ExitSuccess, nil
	}
	return probeOperations(ctx, cfg, []string{cfg.Operation}, stdout, stderr)
}

// describeToken prints what the credential says about its owner and
// reports whether it has expired at now.
func describeToken(w io.Writer, tok *jwt.Token, now time.Time) (expired bool) {
	line := func(k, v string) {
		fmt.Fprintf(w, "  %s %s\n", ui.ConfigLabelStyle.Render(fmt.Sprintf("%-10s", k+":")), ui.ConfigValueStyle.Render(v))
	}

	userID, err := tok.UserID()
	if err != nil {
		userID = "(none: " + err.Error() + ")"
	}
	line("User ID", userID)
	if alg := tok.Algorithm(); alg != "" {
		line("Algorithm", alg)
	}

	exp, ok := tok.ExpiresAt()
	switch {
	case !ok:
		line("Expires", "never (no exp claim)")
	case tok.Expired(now):
		line("Expires", exp.UTC().Format(time.RFC3339))
		fmt.Fprintln(w, ui.FailStyle.Render(fmt.Sprintf("[X] credential expired %s ago, log in again", now.Sub(exp).Round(time.Second))))
		return true
	default:
		line("Expires", fmt.Sprintf("%s (in %s)", exp.UTC().Format(time.RFC3339), exp.Sub(now).Round(time.Second)))
	}
	fmt.Fprintln(w)
	return false
}
