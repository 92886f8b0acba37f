package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinpbarnett/devwatch/internal/runtime/runtimetest"
	"github.com/justinpbarnett/devwatch/internal/server"
)

const waitDuration = 3 * time.Second

func newTestRegistry(t *testing.T) (*server.Registry, *runtimetest.FakeHost) {
	t.Helper()
	host := runtimetest.NewFakeHost()
	reg := server.NewRegistry(host, server.Options{
		Workspace:      t.TempDir(),
		WatchDelay:     10 * time.Millisecond,
		DefaultTimeout: time.Second,
	})
	t.Cleanup(func() { reg.StopAll() })
	return reg, host
}

func sized(t *testing.T, m Monitor) Monitor {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	return next.(Monitor)
}

func press(t *testing.T, m Monitor, r rune) (Monitor, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return next.(Monitor), cmd
}

func refreshed(t *testing.T, m Monitor) Monitor {
	t.Helper()
	next, _ := m.Update(tickMsg(time.Now()))
	return next.(Monitor)
}

func TestMonitorShowsStoppedWithoutServer(t *testing.T) {
	reg, _ := newTestRegistry(t)
	m := sized(t, NewMonitor(reg, "app"))

	view := m.View()
	assert.Contains(t, view, "STOPPED")
	assert.Contains(t, view, "devwatch app")
}

func TestMonitorViewBeforeSize(t *testing.T) {
	reg, _ := newTestRegistry(t)
	m := NewMonitor(reg, "")
	assert.Equal(t, "starting...", m.View())
}

func TestMonitorFollowsBuildState(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")
	fp := host.Last()

	m := sized(t, NewMonitor(reg, "app"))
	assert.Contains(t, m.View(), "BUILDING")
	assert.Contains(t, m.View(), "http://localhost:4200/")

	fp.WriteStdout("Application bundle generation complete.")
	require.Eventually(t, func() bool { return !reg.Get("app").IsBuilding() }, waitDuration, 5*time.Millisecond)

	m = refreshed(t, m)
	view := m.View()
	assert.Contains(t, view, "SUCCESS")
	assert.Contains(t, view, "Application bundle generation complete.")
}

func TestMonitorCopyBuildLogs(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "")
	fp := host.Last()
	fp.WriteStdout("❯ Changes detected. Rebuilding...", "Application bundle generation failed.")
	require.Eventually(t, func() bool { return !reg.Get("").IsBuilding() }, waitDuration, 5*time.Millisecond)

	var copied string
	m := sized(t, NewMonitor(reg, "", WithClipboard(func(s string) error {
		copied = s
		return nil
	})))
	m, _ = press(t, m, 'y')

	assert.Equal(t, "❯ Changes detected. Rebuilding...\nApplication bundle generation failed.", copied)
	assert.Contains(t, m.View(), "copied 2 lines")
	assert.Contains(t, m.View(), "FAILURE")
}

func TestMonitorCopyNothing(t *testing.T) {
	reg, _ := newTestRegistry(t)
	called := false
	m := sized(t, NewMonitor(reg, "app", WithClipboard(func(string) error {
		called = true
		return nil
	})))

	m, _ = press(t, m, 'y')
	assert.False(t, called)
	assert.Contains(t, m.View(), "nothing to copy")
}

func TestMonitorCopyError(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")
	host.Last().WriteStdout("hello")
	require.Eventually(t, func() bool { return len(reg.Get("app").Logs()) == 1 }, waitDuration, 5*time.Millisecond)

	m := sized(t, NewMonitor(reg, "app", WithClipboard(func(string) error {
		return errors.New("no clipboard")
	})))
	m, _ = press(t, m, 'y')
	assert.Contains(t, m.View(), "copy failed: no clipboard")
}

func TestMonitorRestartSpawnsNewProcess(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")
	first := reg.Get("app")

	m := sized(t, NewMonitor(reg, "app"))
	m, _ = press(t, m, 'r')

	assert.Len(t, host.Processes(), 2)
	assert.True(t, host.Processes()[0].Stopped())
	require.NotNil(t, reg.Get("app"))
	assert.NotSame(t, first, reg.Get("app"))
	assert.Contains(t, m.View(), "started and watching")
}

func TestMonitorQuitStopsServer(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")

	m := sized(t, NewMonitor(reg, "app"))
	_, cmd := press(t, m, 'q')

	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Nil(t, reg.Get("app"))
	assert.True(t, host.Last().Stopped())
}

func TestMonitorWaitReportsResult(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")
	host.Last().WriteStdout("Application bundle generation complete.")
	require.Eventually(t, func() bool { return !reg.Get("app").IsBuilding() }, waitDuration, 5*time.Millisecond)

	m := sized(t, NewMonitor(reg, "app"))
	m, cmd := press(t, m, 'w')
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "waiting for build")

	// A second press while waiting is ignored.
	_, again := press(t, m, 'w')
	assert.Nil(t, again)

	msg := cmd()
	done, ok := msg.(waitDoneMsg)
	require.True(t, ok)
	assert.Equal(t, server.WaitSuccess, done.result.Status)

	next, _ := m.Update(msg)
	m = next.(Monitor)
	assert.NotContains(t, m.View(), "waiting for build")
	assert.Contains(t, m.View(), "wait: success (1 lines)")
}

// monitorAdapter keeps the latest model so tests can inspect it after the
// program has processed messages.
type monitorAdapter struct {
	m Monitor
}

func (a *monitorAdapter) Init() tea.Cmd { return a.m.Init() }

func (a *monitorAdapter) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := a.m.Update(msg)
	a.m = next.(Monitor)
	return a, cmd
}

func (a *monitorAdapter) View() string { return a.m.View() }

func waitForContains(tb testing.TB, tm *teatest.TestModel, substr string) {
	tb.Helper()
	teatest.WaitFor(
		tb,
		tm.Output(),
		func(bts []byte) bool { return bytes.Contains(bts, []byte(substr)) },
		teatest.WithDuration(waitDuration),
	)
}

func TestMonitorProgramTracksBuild(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")
	fp := host.Last()

	adapter := &monitorAdapter{m: NewMonitor(reg, "app")}
	tm := teatest.NewTestModel(t, adapter, teatest.WithInitialTermSize(100, 20))
	tm.Send(tea.WindowSizeMsg{Width: 100, Height: 20})
	waitForContains(t, tm, "BUILDING")

	fp.WriteStdout("Application bundle generation complete.")
	waitForContains(t, tm, "SUCCESS")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(waitDuration))

	assert.Nil(t, reg.Get("app"))
	assert.True(t, fp.Stopped())
}
