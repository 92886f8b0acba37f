// Package ui is the interactive terminal monitor for a single dev server.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justinpbarnett/devwatch/internal/process"
	"github.com/justinpbarnett/devwatch/internal/server"
	"github.com/justinpbarnett/devwatch/internal/ui/clipboard"
	"github.com/justinpbarnett/devwatch/internal/ui/styles"
)

const (
	refreshInterval = 250 * time.Millisecond
	flashDuration   = 5 * time.Second
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Controller is the registry surface the monitor drives.
type Controller interface {
	Start(ctx context.Context, project string) server.StartResult
	Stop(project string) server.StopResult
	WaitForBuild(ctx context.Context, project string, timeout time.Duration) server.WaitResult
	Get(project string) *process.DevServer
}

type tickMsg time.Time

type waitDoneMsg struct {
	result server.WaitResult
}

type Option func(*Monitor)

// WithClipboard replaces the clipboard writer used by the copy key.
func WithClipboard(fn func(string) error) Option {
	return func(m *Monitor) { m.copy = fn }
}

// Monitor shows the most recent build of one project and its status, and
// lets the user wait on, copy, or restart it.
type Monitor struct {
	ctl     Controller
	project string
	keys    KeyMap
	copy    func(string) error

	viewport viewport.Model
	width    int
	height   int
	ready    bool

	snap    process.Snapshot
	running bool
	logs    []string
	waiting bool
	frame   int

	flash      string
	flashUntil time.Time
}

func NewMonitor(ctl Controller, project string, opts ...Option) Monitor {
	m := Monitor{
		ctl:      ctl,
		project:  project,
		keys:     DefaultKeyMap(),
		copy:     clipboard.Write,
		viewport: viewport.New(0, 0),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

func (m Monitor) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-2, 0)
		m.viewport.Height = max(msg.Height-4, 0)
		m.ready = true
		m.setContent()
		return m, nil

	case tickMsg:
		m.frame++
		m.refresh()
		return m, tick()

	case waitDoneMsg:
		m.waiting = false
		m.refresh()
		m.setFlash(fmt.Sprintf("wait: %s (%d lines)", msg.result.Status, len(msg.result.Logs)))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Monitor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctl.Stop(m.project)
		return m, tea.Quit

	case key.Matches(msg, m.keys.Wait):
		if m.waiting {
			return m, nil
		}
		m.waiting = true
		ctl, project := m.ctl, m.project
		return m, func() tea.Msg {
			return waitDoneMsg{result: ctl.WaitForBuild(context.Background(), project, 0)}
		}

	case key.Matches(msg, m.keys.Copy):
		if len(m.logs) == 0 {
			m.setFlash("nothing to copy")
			return m, nil
		}
		if err := m.copy(strings.Join(m.logs, "\n")); err != nil {
			m.setFlash("copy failed: " + err.Error())
		} else {
			m.setFlash(fmt.Sprintf("copied %d lines", len(m.logs)))
		}
		return m, nil

	case key.Matches(msg, m.keys.Restart):
		m.ctl.Stop(m.project)
		res := m.ctl.Start(context.Background(), m.project)
		m.refresh()
		m.setFlash(res.Message)
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh pulls the current state from the registry.
func (m *Monitor) refresh() {
	ds := m.ctl.Get(m.project)
	if ds == nil {
		m.running = false
		m.snap = process.Snapshot{Key: server.ProjectKey(m.project)}
		m.setContent()
		return
	}
	m.running = true
	m.snap = ds.Snapshot()
	m.logs = ds.MostRecentBuild().Logs
	m.setContent()
}

func (m *Monitor) setContent() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(m.logs, "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Monitor) setFlash(s string) {
	m.flash = s
	m.flashUntil = time.Now().Add(flashDuration)
}

func (m Monitor) View() string {
	if !m.ready {
		return "starting..."
	}

	title := "devwatch " + m.snap.Key
	if m.snap.Address != "" {
		title += " " + m.snap.Address
	}
	panel := renderPanel(title, m.viewport.View(), m.keys.hints(), m.width, m.height-1)
	return panel + "\n" + m.statusLine()
}

func (m Monitor) statusLine() string {
	parts := []string{m.badge()}
	if m.running {
		parts = append(parts, styles.TextSecondaryStyle.Render(fmt.Sprintf("pid %d  %d lines", m.snap.PID, m.snap.Lines)))
	}
	if m.waiting {
		parts = append(parts, styles.TextPrimaryStyle.Render(spinnerFrames[m.frame%len(spinnerFrames)]+" waiting for build"))
	}
	if m.flash != "" && time.Now().Before(m.flashUntil) {
		parts = append(parts, styles.TextPrimaryStyle.Render(m.flash))
	}
	line := strings.Join(parts, "  ")
	return lipgloss.NewStyle().MaxWidth(m.width).Render(line)
}

func (m Monitor) badge() string {
	label := "STOPPED"
	color := styles.StatusWarning
	if m.running {
		color = styles.BuildColor(m.snap.Building, m.snap.Status)
		switch {
		case m.snap.Building:
			label = "BUILDING"
		default:
			label = strings.ToUpper(string(m.snap.Status))
		}
	}
	return styles.BadgeStyle.Background(color).Render(label)
}
