package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load discovers a config file, merges it with defaults, applies environment
// variable overrides, validates the result, and returns the final config.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom loads config using dir as the starting point for file discovery.
func LoadFrom(dir string) (*Config, error) {
	path, err := discoverConfigPath(dir)
	if err != nil {
		return nil, fmt.Errorf("config discovery: %w", err)
	}
	return LoadFile(path)
}

// LoadFile loads an explicit config file. An empty path yields defaults plus
// environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		override, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		merge(&cfg, override)
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigPath searches the discovery chain and returns the first config
// file that exists. Returns empty string if none found (defaults-only mode).
func discoverConfigPath(dir string) (string, error) {
	for _, name := range []string{"devwatch.yaml", "devwatch.toml"} {
		local := filepath.Join(dir, name)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	user := filepath.Join(home, ".config", "devwatch", "config.yaml")
	if _, err := os.Stat(user); err == nil {
		return user, nil
	}

	return "", nil
}

// loadFromFile reads a YAML or TOML file, chosen by extension.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var cfg Config
	if filepath.Ext(path) == ".toml" {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// merge overlays override onto base. Scalars override when non-zero; slices
// replace entirely when non-nil.
func merge(base *Config, override *Config) {
	// Server
	if override.Server.Command != "" {
		base.Server.Command = override.Server.Command
	}
	if override.Server.Host != "" {
		base.Server.Host = override.Server.Host
	}
	if override.Server.Workspace != "" {
		base.Server.Workspace = override.Server.Workspace
	}
	if override.Server.ExtraArgs != nil {
		base.Server.ExtraArgs = override.Server.ExtraArgs
	}
	if override.Server.StopGrace != 0 {
		base.Server.StopGrace = override.Server.StopGrace
	}

	// Wait
	if override.Wait.WatchDelay != 0 {
		base.Wait.WatchDelay = override.Wait.WatchDelay
	}
	if override.Wait.DefaultTimeout != 0 {
		base.Wait.DefaultTimeout = override.Wait.DefaultTimeout
	}

	if override.Ports.LockFile != "" {
		base.Ports.LockFile = override.Ports.LockFile
	}

	// Logging
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.FileDir != "" {
		base.Logging.FileDir = override.Logging.FileDir
	}

	if override.Metrics.Addr != "" {
		base.Metrics.Addr = override.Metrics.Addr
	}
}

// applyEnvOverrides applies DEVWATCH_* environment variables on top of the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVWATCH_COMMAND"); v != "" {
		cfg.Server.Command = v
	}
	if v := os.Getenv("DEVWATCH_WATCH_DELAY"); v != "" {
		if d, err := parseDuration(v); err == nil {
			cfg.Wait.WatchDelay = d
		} else {
			fmt.Fprintf(os.Stderr, "warning: DEVWATCH_WATCH_DELAY=%q is not a valid duration, ignoring\n", v)
		}
	}
	if v := os.Getenv("DEVWATCH_WAIT_TIMEOUT"); v != "" {
		if d, err := parseDuration(v); err == nil {
			cfg.Wait.DefaultTimeout = d
		} else {
			fmt.Fprintf(os.Stderr, "warning: DEVWATCH_WAIT_TIMEOUT=%q is not a valid duration, ignoring\n", v)
		}
	}
	if v := os.Getenv("DEVWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DEVWATCH_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// parseDuration accepts a Go duration ("90s") or a bare millisecond count.
func parseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}
