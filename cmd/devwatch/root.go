package main

import (
	"fmt"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/justinpbarnett/devwatch/internal/config"
	"github.com/justinpbarnett/devwatch/internal/detect"
	"github.com/justinpbarnett/devwatch/internal/logging"
	"github.com/justinpbarnett/devwatch/internal/metrics"
	"github.com/justinpbarnett/devwatch/internal/runtime"
	"github.com/justinpbarnett/devwatch/internal/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "devwatch",
	Short:   "Supervise Angular dev servers and report their builds",
	Version: version,
	Long: `devwatch runs "ng serve" in watch mode for one or more projects of an
Angular workspace, classifies the build output, and reports whether the most
recent rebuild succeeded along with its logs.

"devwatch serve" exposes this over the Model Context Protocol on stdio;
"devwatch run" shows a single project in an interactive monitor.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: devwatch.yaml or devwatch.toml discovery)")
	rootCmd.AddCommand(serveCmd, runCmd, doctorCmd, versionCmd, updateCmd)
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// setupLogging points the global logger at stderr, or at the configured log
// directory. quiet discards stderr output for commands that own the terminal.
func setupLogging(cfg *config.Config, quiet bool) {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.FileDir != "" {
		err := logging.EnableFileLogging(cfg.Logging.FileDir, level)
		if err == nil {
			return
		}
		if !quiet {
			fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
		}
	}
	if quiet {
		logging.Discard()
		return
	}
	logging.Configure(level, os.Stderr)
}

// newRegistry wires the host, port allocator and metrics recorder from cfg.
// The workspace is resolved to the enclosing angular.json when one exists;
// the detection result is nil otherwise.
func newRegistry(cfg *config.Config) (*server.Registry, *prom.Registry, *detect.Result) {
	workspace := cfg.Server.Workspace
	res, err := detect.Detect(workspace)
	if err == nil {
		workspace = res.Root
		warnIncompatible(res)
	} else {
		logging.Warn("workspace detection failed", "workspace", workspace, "error", err)
		res = nil
	}

	promReg := prom.NewRegistry()
	ports := runtime.NewPortAllocator(cfg.Ports.LockFile)
	host := runtime.NewExecHost(ports, cfg.Server.StopGrace)
	reg := server.NewRegistry(host, server.Options{
		Command:        serverCommand(cfg, res),
		Workspace:      workspace,
		Host:           cfg.Server.Host,
		ExtraArgs:      cfg.Server.ExtraArgs,
		WatchDelay:     cfg.Wait.WatchDelay,
		DefaultTimeout: cfg.Wait.DefaultTimeout,
		Recorder:       metrics.NewPrometheusRecorder(promReg),
	})
	return reg, promReg, res
}

// serverCommand is the configured CLI invocation, or the workspace's own
// runner (pnpm, yarn, bun, local ng) when server.command is the default.
func serverCommand(cfg *config.Config, res *detect.Result) []string {
	if res != nil && cfg.Server.Command == config.DefaultConfig().Server.Command {
		return res.Command()
	}
	return cfg.Server.CommandFields()
}

func warnIncompatible(res *detect.Result) {
	ok, err := res.Compatible()
	switch {
	case err != nil:
		logging.Warn("unreadable @angular/cli version", "version", res.CLIVersion, "error", err)
	case !ok:
		logging.Warn("@angular/cli is older than the supported minimum; build markers may not be recognised",
			"version", res.CLIVersion, "minimum", detect.MinCLIVersion)
	}
}
