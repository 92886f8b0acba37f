package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justinpbarnett/devwatch/internal/update"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the devwatch version and check for a newer release",
	Args:  cobra.NoArgs,
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "devwatch version %s\n", version)

	if update.IsDevBuild(version) {
		fmt.Fprintln(out, "Development build; update check skipped.")
		return
	}

	rel, err := update.CheckForUpdate(cmd.Context(), version, update.Repo)
	switch {
	case err != nil:
		fmt.Fprintf(out, "Update check failed: %v\n", err)
	case rel != nil:
		fmt.Fprintf(out, "Update available: v%s. Run \"devwatch update\" to install.\n", rel.Version)
	default:
		fmt.Fprintln(out, "You are up to date.")
	}
}
