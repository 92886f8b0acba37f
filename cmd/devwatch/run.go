package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/justinpbarnett/devwatch/internal/detect"
	"github.com/justinpbarnett/devwatch/internal/logging"
	"github.com/justinpbarnett/devwatch/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run [project]",
	Short: "Start a dev server and watch its builds interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg, true)
	defer logging.Close()

	var project string
	if len(args) == 1 {
		project = args[0]
	}

	reg, _, ws := newRegistry(cfg)
	if err := checkProject(ws, project); err != nil {
		return err
	}
	defer reg.StopAll()

	res := reg.Start(cmd.Context(), project)
	if res.Address == "" {
		return fmt.Errorf("%s", res.Message)
	}

	p := tea.NewProgram(ui.NewMonitor(reg, project), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}

// checkProject rejects a project name the detected workspace does not define.
// Without a detected workspace any name is passed through to the CLI.
func checkProject(ws *detect.Result, project string) error {
	if ws == nil || project == "" || ws.HasProject(project) {
		return nil
	}
	return fmt.Errorf("unknown project %q in %s (projects: %s)", project, ws.Root, strings.Join(ws.Projects, ", "))
}
