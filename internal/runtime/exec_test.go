package runtime

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func readAll(t *testing.T, r io.Reader) []string {
	t.Helper()
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestExecHostStreamsAndExit(t *testing.T) {
	requireShell(t)
	h := NewExecHost(NewPortAllocator(filepath.Join(t.TempDir(), "ports.lock")), time.Second)

	proc, err := h.Start(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo out1; echo err1 1>&2; echo out2; exit 3"},
	})
	require.NoError(t, err)
	require.NotZero(t, proc.PID)

	stdout := make(chan []string, 1)
	go func() { stdout <- readAll(t, proc.Stdout) }()
	stderr := readAll(t, proc.Stderr)

	assert.Equal(t, []string{"out1", "out2"}, <-stdout)
	assert.Equal(t, []string{"err1"}, stderr)

	err = proc.Wait()
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, proc.ExitCode())
	assert.True(t, proc.Exited())
}

func TestExecHostStartUnknownCommand(t *testing.T) {
	h := NewExecHost(NewPortAllocator(filepath.Join(t.TempDir(), "ports.lock")), time.Second)
	_, err := h.Start(context.Background(), Spec{Command: "definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
}

func TestExecHostStopReturnsBeforeExit(t *testing.T) {
	requireShell(t)
	h := NewExecHost(NewPortAllocator(filepath.Join(t.TempDir(), "ports.lock")), time.Second)

	proc, err := h.Start(context.Background(), Spec{Command: "sh", Args: []string{"-c", "sleep 60"}})
	require.NoError(t, err)

	require.NoError(t, h.Stop(proc))

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Stop")
	}
	assert.Equal(t, -1, proc.ExitCode(), "signalled process has no exit code")

	// Stopping an exited process is a no-op.
	assert.NoError(t, h.Stop(proc))
}

func TestExecHostFileExists(t *testing.T) {
	h := NewExecHost(nil, 0)
	dir := t.TempDir()
	assert.True(t, h.FileExists(dir))
	assert.False(t, h.FileExists(filepath.Join(dir, "missing")))
}

func TestNewProcessExitOnce(t *testing.T) {
	proc, exit := NewProcess(7, io.NopCloser(nil), io.NopCloser(nil))
	assert.False(t, proc.Exited())
	assert.Equal(t, -1, proc.ExitCode())

	exit(nil)
	exit(errors.New("ignored"))

	assert.NoError(t, proc.Wait())
	assert.Equal(t, 0, proc.ExitCode())
}
