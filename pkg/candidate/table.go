package candidate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/presets"
)

// Spec is one unrendered candidate as written in a table file.
type Spec struct {
	Name   string `yaml:"name"`
	Kind   Kind   `yaml:"kind"`
	Method string `yaml:"method,omitempty"`
	Path   string `yaml:"path,omitempty"`
	Body   any    `yaml:"body,omitempty"`
	Type   string `yaml:"type,omitempty"`
	Data   any    `yaml:"data,omitempty"`
	Auth   Auth   `yaml:"auth,omitempty"`
}

// Operation is an ordered list of guesses for one operation tag.
type Operation struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Extract     []string `yaml:"extract,omitempty"`
	Candidates  []Spec   `yaml:"candidates"`
}

// Table is the static candidate configuration.
type Table struct {
	Version    int         `yaml:"version"`
	Operations []Operation `yaml:"operations"`
}

// Builtin returns the table bundled with the binary.
func Builtin() (*Table, error) {
	data, err := presets.FS.ReadFile(presets.CandidatesFile)
	if err != nil {
		return nil, fmt.Errorf("reading built-in candidates: %w", err)
	}
	return ParseTable(data)
}

// LoadTable reads a YAML table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading candidate table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML table. Unknown keys are errors
// so a misspelled field never silently drops a body.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Merge returns a table with other's operations appended; an operation in
// other replaces the one with the same name in t.
func (t *Table) Merge(other *Table) *Table {
	out := &Table{Version: t.Version}
	replaced := make(map[string]bool)
	for _, op := range other.Operations {
		replaced[op.Name] = true
	}
	for _, op := range t.Operations {
		if !replaced[op.Name] {
			out.Operations = append(out.Operations, op)
		}
	}
	out.Operations = append(out.Operations, other.Operations...)
	return out
}

// Validate checks every operation and candidate for the fields its kind needs.
func (t *Table) Validate() error {
	seenOps := make(map[string]bool)
	for _, op := range t.Operations {
		if op.Name == "" {
			return fmt.Errorf("%w: operation without a name", ErrInvalidTable)
		}
		if seenOps[op.Name] {
			return fmt.Errorf("%w: duplicate operation %q", ErrInvalidTable, op.Name)
		}
		seenOps[op.Name] = true

		if len(op.Candidates) == 0 {
			return fmt.Errorf("%w: operation %q has no candidates", ErrInvalidTable, op.Name)
		}
		if len(op.Candidates) > defaults.MaxCandidates {
			return fmt.Errorf("%w: operation %q has %d candidates, max %d",
				ErrInvalidTable, op.Name, len(op.Candidates), defaults.MaxCandidates)
		}

		seen := make(map[string]bool)
		for i, c := range op.Candidates {
			where := fmt.Sprintf("%s[%d]", op.Name, i)
			if c.Name == "" {
				return fmt.Errorf("%w: %s has no name", ErrInvalidTable, where)
			}
			if seen[c.Name] {
				return fmt.Errorf("%w: %s duplicate candidate name %q", ErrInvalidTable, where, c.Name)
			}
			seen[c.Name] = true

			switch c.Kind {
			case KindHTTP:
				if c.Method == "" || c.Path == "" {
					return fmt.Errorf("%w: %s http candidate needs method and path", ErrInvalidTable, where)
				}
			case KindMessage:
				if c.Type == "" {
					return fmt.Errorf("%w: %s message candidate needs type", ErrInvalidTable, where)
				}
			case KindConnect:
				if c.Path == "" {
					return fmt.Errorf("%w: %s connect candidate needs path", ErrInvalidTable, where)
				}
				if c.Auth != "" && c.Auth != AuthHeader && c.Auth != AuthNone {
					return fmt.Errorf("%w: %s unknown auth %q", ErrInvalidTable, where, c.Auth)
				}
			default:
				return fmt.Errorf("%w: %s unknown kind %q", ErrInvalidTable, where, c.Kind)
			}
		}
	}
	return nil
}

// OperationNames returns the operation tags in table order.
func (t *Table) OperationNames() []string {
	names := make([]string, 0, len(t.Operations))
	for _, op := range t.Operations {
		names = append(names, op.Name)
	}
	return names
}

// Lookup returns the named operation.
func (t *Table) Lookup(name string) (Operation, error) {
	i := slices.IndexFunc(t.Operations, func(op Operation) bool { return op.Name == name })
	if i < 0 {
		return Operation{}, fmt.Errorf("%w: %q (known: %s)",
			ErrUnknownOperation, name, strings.Join(t.OperationNames(), ", "))
	}
	return t.Operations[i], nil
}

// Generate renders the operation's candidates in table order. It has no
// side effects: the same table and vars always yield the same sequence.
func (t *Table) Generate(operation string, vars Vars) ([]Candidate, error) {
	op, err := t.Lookup(operation)
	if err != nil {
		return nil, err
	}

	r := newRenderer(vars)
	out := make([]Candidate, 0, len(op.Candidates))
	for i, entry := range op.Candidates {
		c := Candidate{
			Operation:   op.Name,
			Index:       i,
			Name:        entry.Name,
			Kind:        entry.Kind,
			Method:      strings.ToUpper(entry.Method),
			MessageType: entry.Type,
			Auth:        entry.Auth,
		}
		if entry.Kind == KindConnect && c.Auth == "" {
			c.Auth = AuthHeader
		}
		if c.Path, err = r.string(entry.Path); err != nil {
			return nil, fmt.Errorf("%s/%s path: %w", op.Name, entry.Name, err)
		}
		if c.Body, err = r.value(entry.Body); err != nil {
			return nil, fmt.Errorf("%s/%s body: %w", op.Name, entry.Name, err)
		}
		if c.Data, err = r.value(entry.Data); err != nil {
			return nil, fmt.Errorf("%s/%s data: %w", op.Name, entry.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// renderer executes string templates against a run's Vars. Only sprig's
// hermetic functions are exposed so rendering stays repeatable.
type renderer struct {
	vars  Vars
	funcs template.FuncMap
}

func newRenderer(vars Vars) *renderer {
	return &renderer{vars: vars, funcs: sprig.HermeticTxtFuncMap()}
}

func (r *renderer) string(s string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tmpl, err := template.New("candidate").Funcs(r.funcs).Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r.vars); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	return buf.String(), nil
}

// value deep-copies v, rendering every string it contains.
func (r *renderer) value(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return r.string(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			rendered, err := r.value(item)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			rendered, err := r.value(item)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return x, nil
	}
}
