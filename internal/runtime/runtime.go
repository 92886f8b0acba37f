package runtime

import (
	"context"
	"io"
	"os/exec"
	"sync"
)

// Host spawns and signals OS processes on behalf of the supervisor. It is the
// only place that touches the operating system, so tests swap it for a fake.
type Host interface {
	// Start spawns spec. ctx bounds the spawn only; the process outlives it.
	Start(ctx context.Context, spec Spec) (*Process, error)
	// Stop requests termination and returns without waiting for exit.
	Stop(proc *Process) error
	// FreePort returns a port no other caller currently holds.
	FreePort() (int, error)
	// ReleasePort hands a port obtained from FreePort back to the pool.
	ReleasePort(port int)
	FileExists(path string) bool
}

type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// Process is a handle to a spawned child. Stdout and Stderr deliver the
// child's output and reach EOF once the child closes them.
type Process struct {
	PID    int
	Cmd    *exec.Cmd
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	done    chan struct{}
	once    sync.Once
	exitErr error
}

// NewProcess builds a handle around already-open output streams. The returned
// func records the exit result; only its first call has an effect.
func NewProcess(pid int, stdout, stderr io.ReadCloser) (*Process, func(error)) {
	p := &Process{
		PID:    pid,
		Stdout: stdout,
		Stderr: stderr,
		done:   make(chan struct{}),
	}
	return p, p.exit
}

func (p *Process) exit(err error) {
	p.once.Do(func() {
		p.exitErr = err
		close(p.done)
	})
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.done
	return p.exitErr
}

// Exited reports whether the process has already exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code, -1 while running or when killed by a signal.
func (p *Process) ExitCode() int {
	if !p.Exited() {
		return -1
	}
	if p.exitErr == nil {
		return 0
	}
	if ee, ok := p.exitErr.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
