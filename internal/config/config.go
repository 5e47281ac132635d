// Package config loads the jsondb command line configuration.
//
// Settings come from, in decreasing priority: command line flags, environment
// variables, the YAML configuration file and the defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the data directory.
const FileName = "jsondb.yaml"

// Backends.
const (
	BackendDir  = "dir"
	BackendBolt = "bolt"
)

// Config is the content of jsondb.yaml.
type Config struct {
	// DataDir holds one JSON file per table with the dir backend, and the
	// bbolt file by default with the bolt backend.
	DataDir string `yaml:"data_dir,omitempty"`
	// Backend is "dir" or "bolt".
	Backend string `yaml:"backend,omitempty"`
	// BoltFile is the bbolt file path, relative to DataDir unless absolute.
	BoltFile      string `yaml:"bolt_file,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:  "./data",
		Backend:  BackendDir,
		BoltFile: "jsondb.db",
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not an
// error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the -config flag
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from JSONDB_* environment variables, except
// the ones listed in skip (typically set explicitly on the command line).
func (c *Config) ApplyEnv(getenv func(string) string, skip map[string]bool) {
	if !skip["data-dir"] {
		if v := getenv("JSONDB_DATA_DIR"); v != "" {
			c.DataDir = v
		}
	}
	if !skip["log-level"] {
		if v := getenv("JSONDB_LOG_LEVEL"); v != "" {
			c.LogLevel = v
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	switch c.Backend {
	case BackendDir:
	case BackendBolt:
		if c.BoltFile == "" {
			return errors.New("bolt_file is required with the bolt backend")
		}
	default:
		return fmt.Errorf("unknown backend %q; use %s or %s", c.Backend, BackendDir, BackendBolt)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level: %q", c.LogLevel)
}

// BoltPath returns the bbolt file path.
func (c *Config) BoltPath() string {
	if filepath.IsAbs(c.BoltFile) {
		return c.BoltFile
	}
	return filepath.Join(c.DataDir, c.BoltFile)
}
