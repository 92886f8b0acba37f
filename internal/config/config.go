package config

import (
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Wait    WaitConfig    `yaml:"wait" toml:"wait"`
	Ports   PortsConfig   `yaml:"ports" toml:"ports"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

type ServerConfig struct {
	Command   string        `yaml:"command" toml:"command"`
	Host      string        `yaml:"host" toml:"host"`
	Workspace string        `yaml:"workspace" toml:"workspace"`
	ExtraArgs []string      `yaml:"extra_args" toml:"extra_args"`
	StopGrace time.Duration `yaml:"stop_grace" toml:"stop_grace"`
}

// CommandFields splits Command into the executable and its leading args.
func (s ServerConfig) CommandFields() []string {
	return strings.Fields(s.Command)
}

type WaitConfig struct {
	WatchDelay     time.Duration `yaml:"watch_delay" toml:"watch_delay"`
	DefaultTimeout time.Duration `yaml:"default_timeout" toml:"default_timeout"`
}

type PortsConfig struct {
	LockFile string `yaml:"lock_file" toml:"lock_file"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	FileDir string `yaml:"file_dir" toml:"file_dir"`
}

type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables metrics.
	Addr string `yaml:"addr" toml:"addr"`
}
