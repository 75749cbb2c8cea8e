// Package presets embeds the bundled candidate tables so the built-in
// guesses ship inside the binary regardless of how it was installed.
//
// Usage:
//
//	data, _ := presets.FS.ReadFile(presets.CandidatesFile)
package presets

import "embed"

// CandidatesFile is the built-in candidate table.
const CandidatesFile = "candidates.yaml"

// FS contains the bundled YAML candidate tables.
//
//go:embed *.yaml
var FS embed.FS
