package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/justinpbarnett/devwatch/internal/logging"
)

// ValidationError collects multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// validate checks the config for internal consistency. All checks run and
// every failure is reported.
func validate(cfg *Config) error {
	var errs []string

	if len(cfg.Server.CommandFields()) == 0 {
		errs = append(errs, "server.command must not be empty")
	}
	if cfg.Server.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if cfg.Server.StopGrace <= 0 {
		errs = append(errs, "server.stop_grace must be positive")
	}

	if cfg.Wait.WatchDelay <= 0 {
		errs = append(errs, "wait.watch_delay must be positive")
	}
	if cfg.Wait.DefaultTimeout <= 0 {
		errs = append(errs, "wait.default_timeout must be positive")
	}

	if !logging.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level %q must be \"debug\", \"info\", \"warn\", or \"error\"", cfg.Logging.Level))
	}

	if cfg.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Sprintf("metrics.addr %q is not host:port: %v", cfg.Metrics.Addr, err))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
