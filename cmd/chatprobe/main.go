// Command chatprobe discovers the request contract of a chat backend by
// trying candidate request shapes in order until one works.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/waftester/chatprobe/pkg/cli"
	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/duration"
	"github.com/waftester/chatprobe/pkg/ui"
)

func main() {
	os.Exit(dispatch(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// dispatch runs one subcommand and returns the process exit code.
func dispatch(parent context.Context, args []string, stdout, stderr io.Writer) int {
	ui.SetOutput(stderr)
	if len(args) == 0 {
		printUsage(stderr)
		return defaults.ExitUserError
	}

	ctx, cancel := cli.SignalContext(parent, duration.ShutdownGrace, stderr)
	defer cancel()

	var (
		code int
		err  error
	)
	switch args[0] {
	case "run", "probe":
		code, err = runProbe(ctx, args[1:], stdout, stderr)
	case "list", "ls":
		err = runList(args[1:], stdout, stderr)
	case "whoami":
		code, err = runWhoami(ctx, args[1:], stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "%s %s\n", defaults.ToolName, defaults.Version)
		return defaults.ExitSuccess
	case "help", "-h", "--help":
		printUsage(stdout)
		return defaults.ExitSuccess
	default:
		ui.PrintError(fmt.Sprintf("unknown command %q", args[0]))
		printUsage(stderr)
		return defaults.ExitUserError
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		ui.PrintError(err.Error())
		return exitCode(err)
	}
	return code
}

func printUsage(w io.Writer) {
	title := ui.SectionStyle.Render
	cmd := ui.StatValueStyle.Render
	ex := ui.ConfigValueStyle.Render

	fmt.Fprintf(w, "%s %s\n\n", ui.BannerStyle.Render(defaults.ToolName), ui.VersionStyle.Render("v"+defaults.Version))
	fmt.Fprintln(w, "Probe an undocumented chat backend: try candidate request shapes in")
	fmt.Fprintln(w, "order, classify every answer, stop at the first one that works.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, title("COMMANDS"))
	fmt.Fprintf(w, "  %s  %s\n", cmd("run     "), "Probe one operation (and optionally a follow-up with -then)")
	fmt.Fprintf(w, "  %s  %s\n", cmd("list    "), "Show the operations and candidates of the candidate table")
	fmt.Fprintf(w, "  %s  %s\n", cmd("whoami  "), "Decode the credential and find the profile endpoint")
	fmt.Fprintf(w, "  %s  %s\n", cmd("version "), "Print the version")
	fmt.Fprintln(w)

	fmt.Fprintln(w, title("EXAMPLES"))
	fmt.Fprintf(w, "  %s\n", ex("chatprobe run -op create_chat -bootstrap-peer -then send_message"))
	fmt.Fprintf(w, "  %s\n", ex("chatprobe run -op ws_message_types -format table"))
	fmt.Fprintf(w, "  %s\n", ex("chatprobe list -op create_chat"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, title("ENVIRONMENT"))
	fmt.Fprintf(w, "  %-20s %s\n", defaults.EnvBaseURL, "Backend HTTP address")
	fmt.Fprintf(w, "  %-20s %s\n", defaults.EnvWSURL, "Backend WebSocket address")
	fmt.Fprintf(w, "  %-20s %s\n", defaults.EnvToken, "Bearer credential")
	fmt.Fprintf(w, "  %-20s %s\n", defaults.EnvConfig, "YAML config file")
	fmt.Fprintln(w, "  A .env file in the working directory is loaded first.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, title("EXIT CODES"))
	fmt.Fprintln(w, "  0 found  1 none worked  2 usage  3 unreachable  4 internal  5 credential rejected  6 cancelled")
	fmt.Fprintf(w, "\nRun '%s <command> -h' for command flags.\n", defaults.ToolName)
}
