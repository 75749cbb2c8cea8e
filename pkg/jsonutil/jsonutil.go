// Package jsonutil wraps github.com/go-json-experiment/json for the
// payloads chatprobe sends and the replies it decodes.
//
// Usage:
//
//	body, err := jsonutil.Marshal(candidate.Body)
//	var reply map[string]any
//	err = jsonutil.Unmarshal(frame, &reply)
package jsonutil

import (
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Server bodies are not guaranteed to be valid UTF-8; they are recorded
// as-is rather than failing the report. Map keys are sorted so reports
// diff cleanly.
var lenient = json.JoinOptions(jsontext.AllowInvalidUTF8(true), json.Deterministic(true))

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v, lenient)
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, lenient)
}

// MarshalIndent returns the indented JSON encoding of v.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, lenient, jsontext.WithIndent(indent))
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// Object decodes data as a JSON object. ok is false when data is not
// valid JSON or its top-level value is not an object.
func Object(data []byte) (obj map[string]any, ok bool) {
	if err := json.Unmarshal(data, &obj, lenient); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// Encoder writes indented JSON documents followed by a newline.
type Encoder struct {
	w      io.Writer
	indent string
}

// NewEncoder creates an encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// SetIndent sets the indentation for subsequent Encode calls.
func (e *Encoder) SetIndent(indent string) {
	e.indent = indent
}

// Encode writes the JSON encoding of v to the stream, followed by a newline.
func (e *Encoder) Encode(v any) error {
	var err error
	if e.indent != "" {
		err = json.MarshalWrite(e.w, v, lenient, jsontext.WithIndent(e.indent))
	} else {
		err = json.MarshalWrite(e.w, v, lenient)
	}
	if err != nil {
		return err
	}
	_, err = e.w.Write([]byte{'\n'})
	return err
}
