package ui

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/waftester/chatprobe/pkg/defaults"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	out         io.Writer = os.Stderr
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses most output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// SetOutput redirects status output. Nil restores stderr.
func SetOutput(w io.Writer) {
	uiMu.Lock()
	defer uiMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

func writer() io.Writer {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return out
}

const bannerSeparator = "________________________________________________"

// PrintBanner prints the one-box banner.
func PrintBanner() {
	if IsSilent() {
		return
	}
	w := writer()
	fmt.Fprintln(w, BannerStyle.Render(bannerSeparator))
	fmt.Fprintf(w, "\n %s %s\n", BannerStyle.Render(defaults.ToolName), VersionStyle.Render("v"+defaults.Version))
	fmt.Fprintln(w, BannerStyle.Render(bannerSeparator))
	fmt.Fprintln(w)
}

// configOrder fixes the display order of PrintConfigBanner.
var configOrder = []string{
	"Target", "WebSocket", "User", "Peer", "Operation", "Candidates",
	"Timeout", "Budget", "Rate", "Proxy", "Output",
}

// PrintConfigBanner prints the run settings, known keys first in a fixed
// order, then any others sorted.
func PrintConfigBanner(options map[string]string) {
	if IsSilent() {
		return
	}
	w := writer()
	printed := make(map[string]bool)
	for _, name := range configOrder {
		if value, ok := options[name]; ok && value != "" {
			printOption(w, name, value)
			printed[name] = true
		}
	}
	rest := make([]string, 0, len(options))
	for name := range options {
		if !printed[name] && options[name] != "" {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	for _, name := range rest {
		printOption(w, name, options[name])
	}
	fmt.Fprintf(w, "%s\n\n", DividerStyle.Render(bannerSeparator))
}

// Format:  :: Option              : Value
func printOption(w io.Writer, name, value string) {
	fmt.Fprintf(w, " :: %-20s : %s\n", ConfigLabelStyle.Render(name), ConfigValueStyle.Render(value))
}

// PrintDivider prints a stylized divider
func PrintDivider() {
	fmt.Fprintln(writer(), DividerStyle.Render(strings.Repeat("-", 75)))
}

// PrintSection prints a section header
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	w := writer()
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("> "+title))
	PrintDivider()
}

// PrintConfigLine prints a single config line
func PrintConfigLine(key, value string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(writer(), "  %s %s\n",
		ConfigLabelStyle.Render(key+":"),
		ConfigValueStyle.Render(value),
	)
}

// BracketPart represents a piece of bracketed output
type BracketPart struct {
	Text  string
	Style lipgloss.Style
}

// Bracket renders parts as "[a] [b] [c]".
func Bracket(parts ...BracketPart) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(BracketStyle.Render("["))
		b.WriteString(part.Style.Render(part.Text))
		b.WriteString(BracketStyle.Render("]"))
	}
	return b.String()
}

// PrintBracketedInfo prints bracketed parts on one line.
func PrintBracketedInfo(parts ...BracketPart) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(writer(), Bracket(parts...))
}

// MutedBracket is a grey bracket part.
func MutedBracket(text string) BracketPart {
	return BracketPart{Text: text, Style: StatLabelStyle}
}

// ResultBracket is a bracket part coloured by result kind.
func ResultBracket(kind string) BracketPart {
	return BracketPart{Text: kind, Style: ResultStyle(kind)}
}

// StatusBracket is a bracket part coloured by HTTP status.
func StatusBracket(code int) BracketPart {
	return BracketPart{Text: fmt.Sprintf("%d", code), Style: StatusCodeStyle(code)}
}

// PrintHelp prints contextual help
func PrintHelp(text string) {
	fmt.Fprintln(writer(), HelpStyle.Render("  [i] "+text))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintln(writer(), PassStyle.Render(Sanitizef("  [+] %s", message)))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintln(writer(), FailStyle.Render(Sanitizef("  [X] %s", message)))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintln(writer(), WarnStyle.Render(Sanitizef("  [!] %s", message)))
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(writer(), "  %s %s\n", InfoStyle.Render("*"), Sanitizef("%s", message))
}
