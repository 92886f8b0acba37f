package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/justinpbarnett/devwatch/internal/logging"
)

const defaultStopGrace = 5 * time.Second

// ExecHost runs real processes through os/exec. Each child gets its own
// process group so that stopping it also stops whatever it spawned.
type ExecHost struct {
	ports     *PortAllocator
	stopGrace time.Duration
}

func NewExecHost(ports *PortAllocator, stopGrace time.Duration) *ExecHost {
	if stopGrace <= 0 {
		stopGrace = defaultStopGrace
	}
	return &ExecHost{ports: ports, stopGrace: stopGrace}
}

func (h *ExecHost) Start(ctx context.Context, spec Spec) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := exec.LookPath(spec.Command)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", spec.Command, err)
	}

	// Plain *os.File pipes: exec hands them to the child directly, so Wait
	// never races our readers for the tail of the output.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("start: %w", err)
	}
	stdoutW.Close()
	stderrW.Close()

	proc, exit := NewProcess(cmd.Process.Pid, stdoutR, stderrR)
	proc.Cmd = cmd
	go func() {
		exit(cmd.Wait())
	}()

	logging.Debug("process started", "pid", proc.PID, "command", spec.Command, "args", spec.Args)
	return proc, nil
}

// Stop sends SIGTERM to the process group and escalates to SIGKILL after the
// grace period. It does not wait for the process to exit.
func (h *ExecHost) Stop(proc *Process) error {
	if proc == nil || proc.Cmd == nil || proc.Cmd.Process == nil || proc.Exited() {
		return nil
	}
	pgid := proc.Cmd.Process.Pid
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		_ = proc.Cmd.Process.Signal(syscall.SIGTERM)
	}
	go func() {
		timer := time.NewTimer(h.stopGrace)
		defer timer.Stop()
		select {
		case <-proc.Done():
		case <-timer.C:
			logging.Warn("process ignored SIGTERM, killing", "pid", pgid)
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		}
	}()
	return nil
}

func (h *ExecHost) FreePort() (int, error) {
	return h.ports.Acquire()
}

func (h *ExecHost) ReleasePort(port int) {
	h.ports.Release(port)
}

func (h *ExecHost) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
