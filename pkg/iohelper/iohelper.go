// Package iohelper provides helper functions for reading HTTP response
// bodies with limits and trimming them for diagnostic output.
package iohelper

import (
	"io"
	"strings"
	"unicode/utf8"
)

// Standard body size limits for different use cases
const (
	// SmallMaxBodySize is for error pages and rejection messages (8KB)
	SmallMaxBodySize int64 = 8 * 1024

	// DefaultMaxBodySize is for successful JSON responses (1MB)
	DefaultMaxBodySize int64 = 1024 * 1024

	// SnippetLen is how much of a body the console report shows (100 runes)
	SnippetLen = 100
)

// ReadBody reads from an io.Reader with a size limit.
// If r is nil, returns empty slice and no error.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodyDefault reads from an io.Reader with the default 1MB limit.
func ReadBodyDefault(r io.Reader) ([]byte, error) {
	return ReadBody(r, DefaultMaxBodySize)
}

// DrainAndClose reads any remaining data from r and closes it if it's a ReadCloser.
// Always returns nil error to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}

// Snippet returns s trimmed of surrounding whitespace and cut to at most n
// runes, with an ellipsis marking the cut.
func Snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
