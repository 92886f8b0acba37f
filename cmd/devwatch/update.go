package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justinpbarnett/devwatch/internal/update"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace this binary with the latest release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if update.IsDevBuild(version) {
			return update.ErrDevBuild
		}
		rel, err := update.CheckForUpdate(cmd.Context(), version, update.Repo)
		if err != nil {
			return err
		}
		if rel == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "devwatch %s is up to date.\n", version)
			return nil
		}

		applied, err := update.Apply(cmd.Context(), version, update.Repo)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated devwatch %s -> v%s\n", version, applied.Version)
		return nil
	},
}
