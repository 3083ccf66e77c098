// Package config loads the verifier's CLI/REPL configuration from a YAML
// file, grounded on the teacher's eval_harness.LoadSpec pattern: read the
// whole file, unmarshal with yaml.v3, and validate the handful of fields
// that have no sane zero-value default.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls how the CLI and REPL drive the verifier.
type Config struct {
	// Strict selects the stricter reading of Open Question #7
	// (SPEC_FULL.md §5): when true, the function-end Σ-emptiness check
	// applies to every function, not just the entry point. When false, only
	// the entry function is held to it, matching
	// original_source/src/verify.rs's narrower epilogue rule. Threaded
	// through to internal/program.Options.Strict.
	Strict bool `yaml:"strict"`

	// ColorOutput toggles fatih/color formatting in CLI and REPL output.
	ColorOutput bool `yaml:"color_output"`

	// MaxErrors bounds how many of a successful run's per-function results
	// the CLI's `verify` command prints before truncating the list. It does
	// not affect verification itself, which always stops at the first
	// failing function (spec §7's bubble-up propagation) regardless of this
	// setting. Zero means unbounded.
	MaxErrors int `yaml:"max_errors"`

	// EntryLabel overrides which function label is the program's entry
	// point. Nil means "the first statement in program order" (spec §5's
	// default). Threaded through to internal/program.Options.EntryLabel.
	EntryLabel *int32 `yaml:"entry_label"`
}

// Default returns the configuration the CLI falls back to when no file is
// given: strict, colored, unbounded errors, default entry-point inference.
func Default() *Config {
	return &Config{
		Strict:      true,
		ColorOutput: true,
		MaxErrors:   0,
		EntryLabel:  nil,
	}
}

// Load reads and validates a YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if cfg.MaxErrors < 0 {
		return nil, fmt.Errorf("config field max_errors must be >= 0, got %d", cfg.MaxErrors)
	}

	return cfg, nil
}
