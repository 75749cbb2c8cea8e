package ui

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/term"
)

var (
	unicodeOnce sync.Once
	unicodeOK   bool
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// UnicodeTerminal reports whether stderr can render emoji. It is false when
// stderr is piped, TERM is "dumb", or on Windows outside Windows Terminal,
// whose legacy console fonts lack the glyphs.
func UnicodeTerminal() bool {
	unicodeOnce.Do(func() {
		if os.Getenv("TERM") == "dumb" || !IsTerminal(os.Stderr) {
			return
		}
		if runtime.GOOS == "windows" {
			unicodeOK = os.Getenv("WT_SESSION") != ""
			return
		}
		unicodeOK = true
	})
	return unicodeOK
}

// Icon returns unicode when the terminal supports it, ascii otherwise.
func Icon(unicode, ascii string) string {
	if UnicodeTerminal() {
		return unicode
	}
	return ascii
}

// SanitizeString drops emoji and other wide symbols from s when the
// terminal cannot render them. Latin text passes through, so server
// replies in any Latin-script language stay readable.
func SanitizeString(s string) string {
	if UnicodeTerminal() {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r < 0x80 || (!isVariationSelector(r) && legacySafe(r)) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// Sanitizef is fmt.Sprintf followed by SanitizeString.
func Sanitizef(format string, args ...any) string {
	return SanitizeString(fmt.Sprintf(format, args...))
}

func isVariationSelector(r rune) bool {
	return r >= 0xFE00 && r <= 0xFE0F
}

// legacySafe covers Latin-1 and the other Latin and Cyrillic letters most
// console fonts carry.
func legacySafe(r rune) bool {
	return r <= 0xFF || unicode.Is(unicode.Latin, r) || unicode.Is(unicode.Cyrillic, r)
}
