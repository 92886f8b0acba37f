package config

import (
	"os"
	"path/filepath"
	"time"
)

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Command:   "npx ng",
			Host:      "localhost",
			Workspace: ".",
			StopGrace: 5 * time.Second,
		},
		Wait: WaitConfig{
			WatchDelay:     time.Second,
			DefaultTimeout: 180 * time.Second,
		},
		Ports: PortsConfig{
			LockFile: filepath.Join(os.TempDir(), "devwatch-ports.lock"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
