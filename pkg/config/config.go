// Package config resolves run settings from, in rising precedence, the
// built-in defaults, a YAML file, the environment (including a .env file)
// and command-line flags.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/classify"
	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/duration"
	"github.com/waftester/chatprobe/pkg/probe"
)

// Config holds every setting of a probe run.
type Config struct {
	// Target settings
	BaseURL  string `yaml:"base_url"`
	WSURL    string `yaml:"ws_url"`
	Token    string `yaml:"token"`
	Proxy    string `yaml:"proxy"`
	Insecure bool   `yaml:"insecure"`

	// Probe settings
	Operation      string        `yaml:"operation"`
	Then           string        `yaml:"then"`
	Table          string        `yaml:"table"`
	Timeout        time.Duration `yaml:"timeout"`
	MessageTimeout time.Duration `yaml:"message_timeout"`
	Budget         int           `yaml:"budget"`
	Rate           float64       `yaml:"rate"` // attempts per second, 0 = unpaced

	// Classification
	Extract      []string `yaml:"extract"`
	AuthPatterns []string `yaml:"auth_patterns"`

	// Template variables
	PeerUserID    string            `yaml:"peer_user_id"`
	ChatID        string            `yaml:"chat_id"`
	Content       string            `yaml:"content"`
	Vars          map[string]string `yaml:"vars"`
	BootstrapPeer bool              `yaml:"bootstrap_peer"`

	// Output
	Format  string `yaml:"format"`
	SaveID  string `yaml:"save_id"`
	Verbose bool   `yaml:"verbose"`
	NoColor bool   `yaml:"no_color"`

	// Telemetry
	MetricsAddr  string `yaml:"metrics_addr"`
	OTelEndpoint string `yaml:"otel_endpoint"`
	OTelInsecure bool   `yaml:"otel_insecure"`
}

// Default returns the settings a run starts from.
func Default() Config {
	return Config{
		Timeout:        duration.AttemptDefault,
		MessageTimeout: duration.AttemptMessage,
		Budget:         defaults.FailureBudget,
		Extract:        slices.Clone(classify.DefaultExtract),
		AuthPatterns:   slices.Clone(classify.DefaultAuthPatterns),
		Content:        "Hello from " + defaults.ToolName,
		Format:         "console",
		Vars:           map[string]string{},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected so
// a typo does not silently fall back to a default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.decode(data); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return err
	}
	if c.Vars == nil {
		c.Vars = map[string]string{}
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. A missing file is skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, p, err)
	}
	return nil
}

// ApplyEnv fills settings from the environment. lookup is os.LookupEnv in
// production; tests pass a map-backed func.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Token, defaults.EnvToken)
	set(&c.BaseURL, defaults.EnvBaseURL)
	set(&c.WSURL, defaults.EnvWSURL)
}

// Path returns the config file named by -config in args, falling back to
// the environment. It runs before flag parsing so file values can become
// the flag defaults shown in -h.
func Path(args []string, lookup func(string) (string, bool)) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	if v, ok := lookup(defaults.EnvConfig); ok {
		return v
	}
	return ""
}

// Validate reports the first missing or invalid setting.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return fmt.Errorf("%w: base address (-base-url or %s)", ErrMissingRequired, defaults.EnvBaseURL)
	case strings.TrimSpace(c.Token) == "":
		return fmt.Errorf("%w: bearer credential (-token or %s)", ErrMissingRequired, defaults.EnvToken)
	case strings.TrimSpace(c.Operation) == "":
		return fmt.Errorf("%w: operation (-op)", ErrMissingRequired)
	case c.Timeout <= 0 || c.Timeout > duration.AttemptMax:
		return fmt.Errorf("%w: timeout %v outside (0, %v]", ErrInvalidConfig, c.Timeout, duration.AttemptMax)
	case c.MessageTimeout <= 0 || c.MessageTimeout > duration.AttemptMax:
		return fmt.Errorf("%w: message timeout %v outside (0, %v]", ErrInvalidConfig, c.MessageTimeout, duration.AttemptMax)
	case c.Budget <= 0:
		return fmt.Errorf("%w: budget must be positive, got %d", ErrInvalidConfig, c.Budget)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must not be negative, got %v", ErrInvalidConfig, c.Rate)
	case c.Then != "" && c.Then == c.Operation:
		return fmt.Errorf("%w: -then repeats -op %q", ErrInvalidConfig, c.Then)
	}
	if err := c.Rules().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Rules returns the classifier rules these settings describe.
func (c Config) Rules() classify.Rules {
	return classify.Rules{
		Extract:      slices.Clone(c.Extract),
		AuthPatterns: slices.Clone(c.AuthPatterns),
		Budget:       c.Budget,
	}
}

// Session builds the run's session.
func (c Config) Session() (*probe.Session, error) {
	return probe.NewSession(probe.SessionConfig{BaseURL: c.BaseURL, WSURL: c.WSURL, Credential: c.Token})
}

// TemplateVars returns the template variables for one operation. userID
// comes from the session; with an opaque credential it falls back to
// -var user_id=....
func (c Config) TemplateVars(userID, randomID string) candidate.Vars {
	extra := maps.Clone(c.Vars)
	if extra == nil {
		extra = map[string]string{}
	}
	if userID == "" {
		userID = extra["user_id"]
	}
	return candidate.Vars{
		UserID:     userID,
		PeerUserID: c.PeerUserID,
		ChatID:     c.ChatID,
		Content:    c.Content,
		RandomID:   randomID,
		Token:      c.Token,
		Extra:      extra,
	}
}

// AttemptTimeout returns the per-attempt bound for a candidate kind.
func (c Config) AttemptTimeout(kind candidate.Kind) time.Duration {
	if kind == candidate.KindMessage {
		return c.MessageTimeout
	}
	return c.Timeout
}

// Bind registers the run flags on fs with the current values as defaults,
// so parsing fs overrides whatever the file and environment set.
func (c *Config) Bind(fs *flag.FlagSet) {
	// === TARGET ===
	fs.String("config", "", "YAML config file (env "+defaults.EnvConfig+")")
	fs.StringVar(&c.BaseURL, "base-url", c.BaseURL, "Backend HTTP address (env "+defaults.EnvBaseURL+")")
	fs.StringVar(&c.WSURL, "ws-url", c.WSURL, "Backend WebSocket address, default derived from -base-url (env "+defaults.EnvWSURL+")")
	fs.StringVar(&c.Token, "token", c.Token, "Bearer credential (env "+defaults.EnvToken+")")
	fs.StringVar(&c.Proxy, "proxy", c.Proxy, "HTTP/SOCKS5 proxy URL")
	fs.StringVar(&c.Proxy, "x", c.Proxy, "Proxy (alias)")
	fs.BoolVar(&c.Insecure, "k", c.Insecure, "Skip TLS verification")

	// === PROBE ===
	fs.StringVar(&c.Operation, "op", c.Operation, "Operation to probe (see 'list')")
	fs.StringVar(&c.Then, "then", c.Then, "Operation to run next, fed the identifier found by -op")
	fs.StringVar(&c.Table, "table", c.Table, "YAML candidate table merged over the built-in one")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Per-attempt timeout for HTTP and connect candidates")
	fs.DurationVar(&c.MessageTimeout, "message-timeout", c.MessageTimeout, "Per-attempt reply timeout for message candidates")
	fs.IntVar(&c.Budget, "budget", c.Budget, "Consecutive transport failures before aborting")
	fs.Float64Var(&c.Rate, "rate", c.Rate, "Max attempts per second (0 = unpaced)")
	fs.Var(&listFlag{values: &c.Extract}, "extract", "Identifier extraction rules, in order (replaces the defaults)")
	fs.Var(&listFlag{values: &c.AuthPatterns}, "auth-pattern", "Error text meaning the credential was rejected (replaces the defaults)")

	// === VARIABLES ===
	fs.StringVar(&c.PeerUserID, "peer", c.PeerUserID, "Peer user id for {{ .PeerUserID }}")
	fs.BoolVar(&c.BootstrapPeer, "bootstrap-peer", c.BootstrapPeer, "Sign up a throwaway peer account when -peer is empty")
	fs.StringVar(&c.ChatID, "chat-id", c.ChatID, "Chat id for {{ .ChatID }}")
	fs.StringVar(&c.Content, "content", c.Content, "Message text for {{ .Content }}")
	fs.Var((*varsFlag)(&c.Vars), "var", "Extra template variable key=value, repeatable")

	// === OUTPUT ===
	fs.StringVar(&c.Format, "format", c.Format, "Report format: console, json, table")
	fs.StringVar(&c.SaveID, "save-id", c.SaveID, "Write the found identifier to this file")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "Verbose logging")
	fs.BoolVar(&c.NoColor, "no-color", c.NoColor, "Disable colored output")

	// === TELEMETRY ===
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Serve Prometheus metrics on this address during the run")
	fs.StringVar(&c.OTelEndpoint, "otel-endpoint", c.OTelEndpoint, "OTLP/gRPC endpoint for traces")
	fs.BoolVar(&c.OTelInsecure, "otel-insecure", c.OTelInsecure, "Use plaintext gRPC for -otel-endpoint")
}

// listFlag is a comma-separated or repeated string list. The first Set
// replaces the default list, later ones append.
type listFlag struct {
	values *[]string
	set    bool
}

func (l *listFlag) String() string {
	if l == nil || l.values == nil {
		return ""
	}
	return strings.Join(*l.values, ",")
}

func (l *listFlag) Set(value string) error {
	if !l.set {
		*l.values = nil
		l.set = true
	}
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l.values = append(*l.values, v)
		}
	}
	return nil
}

// varsFlag collects key=value pairs.
type varsFlag map[string]string

func (v *varsFlag) String() string {
	if v == nil || *v == nil {
		return ""
	}
	keys := slices.Sorted(maps.Keys(*v))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+(*v)[k])
	}
	return strings.Join(parts, ",")
}

func (v *varsFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	if *v == nil {
		*v = map[string]string{}
	}
	(*v)[key] = val
	return nil
}
