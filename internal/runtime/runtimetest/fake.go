// Package runtimetest provides an in-memory runtime.Host whose processes are
// driven line by line from tests.
package runtimetest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/justinpbarnett/devwatch/internal/runtime"
)

// ErrTerminated is the exit error a FakeProcess reports after Stop.
var ErrTerminated = errors.New("signal: terminated")

type FakeHost struct {
	mu       sync.Mutex
	nextPID  int
	nextPort int
	held     map[int]bool
	procs    []*FakeProcess

	// Files lists paths FileExists reports as present.
	Files map[string]bool
	// StartErr, when set, is returned by every Start call.
	StartErr error
	// BeforeFreePort, when set, runs at the top of every FreePort call, so
	// tests can hold an allocation open the way a contended port lock does.
	BeforeFreePort func()
}

func NewFakeHost() *FakeHost {
	return &FakeHost{
		nextPID:  1000,
		nextPort: 4200,
		held:     make(map[int]bool),
		Files:    make(map[string]bool),
	}
}

type FakeProcess struct {
	*runtime.Process
	Spec runtime.Spec

	stdout *io.PipeWriter
	stderr *io.PipeWriter
	exit   func(error)

	mu      sync.Mutex
	stopped bool
}

func (h *FakeHost) Start(ctx context.Context, spec runtime.Spec) (*runtime.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.StartErr != nil {
		return nil, h.StartErr
	}

	h.nextPID++
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	proc, exit := runtime.NewProcess(h.nextPID, outR, errR)

	fp := &FakeProcess{
		Process: proc,
		Spec:    spec,
		stdout:  outW,
		stderr:  errW,
		exit:    exit,
	}
	h.procs = append(h.procs, fp)
	return proc, nil
}

// Stop marks the process stopped and lets it exit in the background, the
// same shape as a real SIGTERM.
func (h *FakeHost) Stop(proc *runtime.Process) error {
	fp := h.find(proc)
	if fp == nil {
		return nil
	}
	fp.mu.Lock()
	fp.stopped = true
	fp.mu.Unlock()
	go fp.Exit(ErrTerminated)
	return nil
}

func (h *FakeHost) FreePort() (int, error) {
	if h.BeforeFreePort != nil {
		h.BeforeFreePort()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.held[h.nextPort] {
		h.nextPort++
	}
	port := h.nextPort
	h.held[port] = true
	h.nextPort++
	return port, nil
}

func (h *FakeHost) ReleasePort(port int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.held, port)
}

func (h *FakeHost) FileExists(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Files[path]
}

// Processes returns every process started so far, oldest first.
func (h *FakeHost) Processes() []*FakeProcess {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*FakeProcess, len(h.procs))
	copy(out, h.procs)
	return out
}

// Last returns the most recently started process, or nil.
func (h *FakeHost) Last() *FakeProcess {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.procs) == 0 {
		return nil
	}
	return h.procs[len(h.procs)-1]
}

// HeldPorts reports how many ports are currently handed out.
func (h *FakeHost) HeldPorts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.held)
}

func (h *FakeHost) find(proc *runtime.Process) *FakeProcess {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, fp := range h.procs {
		if fp.Process == proc {
			return fp
		}
	}
	return nil
}

// WriteStdout writes lines to the process's stdout. It blocks until the
// reader has consumed them.
func (p *FakeProcess) WriteStdout(lines ...string) {
	writeLines(p.stdout, lines)
}

// WriteStderr writes lines to the process's stderr.
func (p *FakeProcess) WriteStderr(lines ...string) {
	writeLines(p.stderr, lines)
}

// Exit closes both streams and records err as the exit result.
func (p *FakeProcess) Exit(err error) {
	p.stdout.Close()
	p.stderr.Close()
	p.exit(err)
}

func (p *FakeProcess) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func writeLines(w *io.PipeWriter, lines []string) {
	for _, l := range lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return
		}
	}
}
