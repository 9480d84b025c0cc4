// Package mergecfg loads optional defaults for the merge CLI from a YAML
// file, with environment variables as a fallback and explicit flags always
// taking precedence over both.
package mergecfg

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the subset of CLI options a defaults file may pre-populate.
// Every field is optional; zero values mean "let the CLI decide."
type Config struct {
	SchemaPath string `yaml:"schema_path"`
	OutputPath string `yaml:"output_path"`
	MinInserts int    `yaml:"min_inserts"`
	KeepIDMaps bool   `yaml:"keep_id_maps"`
	Quiet      bool   `yaml:"quiet"`
}

// Load reads and parses a YAML defaults file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	return &cfg, nil
}

// applyEnv fills in empty fields from environment variables. YAML values
// take precedence; env vars are used only as fallback, matching the
// layering the CLI itself applies between this config and explicit flags.
func (c *Config) applyEnv() {
	if c.SchemaPath == "" {
		c.SchemaPath = os.Getenv("PRISMERGE_SCHEMA_PATH")
	}
	if c.OutputPath == "" {
		c.OutputPath = os.Getenv("PRISMERGE_OUTPUT_PATH")
	}
	if c.MinInserts == 0 {
		if s := os.Getenv("PRISMERGE_MIN_INSERTS"); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				c.MinInserts = n
			}
		}
	}
}

// Defaulted returns a copy of c with any still-zero field filled in with
// the engine's built-in defaults (spec.md §6.2).
func (c *Config) Defaulted() Config {
	out := *c
	if out.OutputPath == "" {
		out.OutputPath = "./merged.db"
	}
	if out.MinInserts == 0 {
		out.MinInserts = 1000
	}
	return out
}
