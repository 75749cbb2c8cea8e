// Package report renders a runner.Report for people (console, table) and
// for programs (JSON).
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/waftester/chatprobe/pkg/iohelper"
	"github.com/waftester/chatprobe/pkg/jsonutil"
	"github.com/waftester/chatprobe/pkg/runner"
	"github.com/waftester/chatprobe/pkg/ui"
)

// Format selects a renderer.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatTable   Format = "table"
)

// ParseFormat validates a -format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatConsole, FormatJSON, FormatTable:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (want console, json or table)", s)
}

// Write renders rep in format f.
func Write(w io.Writer, f Format, rep *runner.Report) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, rep)
	case FormatTable:
		return WriteTable(w, rep)
	}
	return WriteConsole(w, rep)
}

// WriteJSON writes rep as one indented JSON document.
func WriteJSON(w io.Writer, rep *runner.Report) error {
	enc := jsonutil.NewEncoder(w)
	enc.SetIndent("  ")
	return enc.Encode(rep)
}

// AttemptLine is the one-line progress form of an attempt:
//
//	[2/7] [participant_id] POST /api/v1/chat/chats [recognized_error] [422] [14ms] participant_ids required
func AttemptLine(a runner.Attempt, total int) string {
	parts := []ui.BracketPart{
		ui.MutedBracket(fmt.Sprintf("%d/%d", a.Candidate.Index+1, total)),
		{Text: a.Candidate.Name, Style: ui.CandidateStyle},
	}
	line := ui.Bracket(parts...) + " " + ui.ConfigValueStyle.Render(a.Candidate.Label()) + " "

	tail := []ui.BracketPart{ui.ResultBracket(string(a.Result.Kind))}
	if a.Result.Status != 0 {
		tail = append(tail, ui.StatusBracket(a.Result.Status))
	}
	tail = append(tail, ui.MutedBracket(fmt.Sprintf("%dms", a.DurationMS)))
	line += ui.Bracket(tail...)

	if d := detail(a); d != "" {
		line += " " + ui.StatLabelStyle.Render(d)
	}
	return ui.SanitizeString(line)
}

// detail is the short explanation shown after an attempt.
func detail(a runner.Attempt) string {
	r := a.Result
	switch {
	case r.IsSuccess() && a.Decision.Identifier != "":
		return "id=" + a.Decision.Identifier
	case r.IsSuccess() && r.ReplyType != "":
		return "reply=" + r.ReplyType
	case r.Message != "":
		return iohelper.Snippet(r.Message, iohelper.SnippetLen)
	case r.CauseText != "":
		return iohelper.Snippet(r.CauseText, iohelper.SnippetLen)
	}
	return ""
}

// WriteConsole writes the human summary: the attempt log, distinct
// responses and the verdict.
func WriteConsole(w io.Writer, rep *runner.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", ui.TitleStyle.Render(rep.Operation), ui.StatLabelStyle.Render("run "+rep.RunID))

	for _, a := range rep.Attempts {
		b.WriteString("  " + AttemptLine(a, rep.Candidates) + "\n")
	}
	if skipped := rep.Candidates - len(rep.Attempts); skipped > 0 {
		fmt.Fprintf(&b, "  %s\n", ui.StatLabelStyle.Render(fmt.Sprintf("%d candidate(s) not tried", skipped)))
	}

	if groups := rep.DistinctResponses(); len(rep.Attempts) > 1 {
		fmt.Fprintf(&b, "\n  %s %s\n",
			ui.StatLabelStyle.Render("distinct responses:"),
			ui.StatValueStyle.Render(fmt.Sprintf("%d of %d", len(groups), len(rep.Attempts))))
		for _, g := range groups {
			if len(g.Attempts) < 2 {
				continue
			}
			fmt.Fprintf(&b, "    %s x%d: %s\n",
				ui.ResultStyle(string(g.Kind)).Render(string(g.Kind)), len(g.Attempts),
				ui.SanitizeString(iohelper.Snippet(g.Summary, iohelper.SnippetLen)))
		}
	}

	b.WriteString("\n" + Verdict(rep) + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Verdict is the styled one-line result a person acts on.
func Verdict(rep *runner.Report) string {
	switch rep.Outcome() {
	case runner.OutcomeFound:
		msg := fmt.Sprintf("[+] %s works: %s", rep.Winner.Name, rep.Winner.Label())
		if rep.Identifier != "" {
			msg += " -> " + rep.Identifier
		}
		return ui.PassStyle.Render(ui.SanitizeString(msg))
	case runner.OutcomeNoneWorked:
		return ui.FailStyle.Render(fmt.Sprintf("[X] none of %d candidates worked", rep.Candidates))
	case runner.OutcomeCredentialRejected:
		return ui.FailStyle.Render("[X] credential rejected, refresh the token: " + rep.AbortReason)
	case runner.OutcomeCancelled:
		return ui.WarnStyle.Render("[!] cancelled: " + rep.AbortReason)
	}
	return ui.FailStyle.Render("[X] backend unreachable: " + rep.AbortReason)
}

// WriteTable writes the attempt log as an ASCII table.
func WriteTable(w io.Writer, rep *runner.Report) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Candidate", "Request", "Result", "Status", "ms", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, a := range rep.Attempts {
		status := ""
		if a.Result.Status != 0 {
			status = fmt.Sprintf("%d", a.Result.Status)
		}
		table.Append([]string{
			fmt.Sprintf("%d", a.Candidate.Index+1),
			a.Candidate.Name,
			a.Candidate.Label(),
			string(a.Result.Kind),
			status,
			fmt.Sprintf("%d", a.DurationMS),
			iohelper.Snippet(detail(a), 60),
		})
	}
	table.SetFooter([]string{"", "", "", string(rep.State), "", "", rep.Identifier})
	table.Render()
	return nil
}
