package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/config"
	"github.com/waftester/chatprobe/pkg/defaults"
)

// dotEnvFile is loaded before anything else reads the environment.
const dotEnvFile = ".env"

// loadConfig resolves defaults, the config file, the environment and the
// command's flags, in that order. preset adjusts the defaults a command
// shows in -h.
func loadConfig(name string, args []string, stderr io.Writer, preset func(*config.Config)) (config.Config, error) {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if path := config.Path(args, os.LookupEnv); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(os.LookupEnv)
	if preset != nil {
		preset(&cfg)
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.Bind(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cfg, err
		}
		return cfg, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("%w: unexpected arguments %v", config.ErrInvalidConfig, fs.Args())
	}
	return cfg, nil
}

// loadTable returns the built-in table with the user's table merged over it.
func loadTable(path string) (*candidate.Table, error) {
	table, err := candidate.Builtin()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return table, nil
	}
	user, err := candidate.LoadTable(path)
	if err != nil {
		return nil, withCode(defaults.ExitUserError, err)
	}
	merged := table.Merge(user)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}
