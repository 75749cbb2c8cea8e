package probe

import (
	"net/url"
	"strings"
)

// Redaction replaces the bearer credential wherever a run records it.
const Redaction = "REDACTED"

// Redact replaces every occurrence of secret in s, raw or URL-escaped.
func Redact(s, secret string) string {
	if secret == "" || s == "" {
		return s
	}
	s = strings.ReplaceAll(s, secret, Redaction)
	for _, escaped := range []string{url.QueryEscape(secret), url.PathEscape(secret)} {
		if escaped != secret {
			s = strings.ReplaceAll(s, escaped, Redaction)
		}
	}
	return s
}

// RedactValue returns a copy of v with secret redacted from every string
// it holds. Maps and slices are copied, v itself is left alone.
func RedactValue(v any, secret string) any {
	if secret == "" {
		return v
	}
	switch x := v.(type) {
	case string:
		return Redact(x, secret)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = RedactValue(val, secret)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = RedactValue(val, secret)
		}
		return out
	}
	return v
}

// Redacted returns a copy of r with secret removed from its text fields.
// Cause keeps the original error for errors.Is checks and is never
// serialized.
func (r Result) Redacted(secret string) Result {
	if secret == "" {
		return r
	}
	r.Message = Redact(r.Message, secret)
	r.Body = Redact(r.Body, secret)
	r.CauseText = Redact(r.CauseText, secret)
	r.Payload = RedactValue(r.Payload, secret)
	return r
}
