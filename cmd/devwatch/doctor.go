package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justinpbarnett/devwatch/internal/detect"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report the detected workspace and CLI compatibility",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	res, err := detect.Detect(cfg.Server.Workspace)
	if errors.Is(err, detect.ErrNoWorkspace) {
		fmt.Fprintf(out, "workspace:   not found (no angular.json at or above %s)\n", cfg.Server.Workspace)
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "workspace:   %s\n", res.Root)
	fmt.Fprintf(out, "projects:    %s\n", strings.Join(res.Projects, ", "))
	if res.DefaultProject != "" {
		fmt.Fprintf(out, "default:     %s\n", res.DefaultProject)
	}
	fmt.Fprintf(out, "runner:      %s\n", res.Runner)
	fmt.Fprintf(out, "command:     %s\n", strings.Join(res.Command(), " "))
	fmt.Fprintf(out, "configured:  %s\n", cfg.Server.Command)

	if res.CLIVersion == "" {
		fmt.Fprintln(out, "@angular/cli: not installed locally")
		return nil
	}
	ok, err := res.Compatible()
	switch {
	case err != nil:
		fmt.Fprintf(out, "@angular/cli: %s (unparseable: %v)\n", res.CLIVersion, err)
	case ok:
		fmt.Fprintf(out, "@angular/cli: %s (ok, >= %s)\n", res.CLIVersion, detect.MinCLIVersion)
	default:
		fmt.Fprintf(out, "@angular/cli: %s (too old, need >= %s)\n", res.CLIVersion, detect.MinCLIVersion)
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: build markers may not be recognised by this CLI version")
	}
	return nil
}
