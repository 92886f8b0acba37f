package process

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/justinpbarnett/devwatch/internal/logging"
	"github.com/justinpbarnett/devwatch/internal/metrics"
	"github.com/justinpbarnett/devwatch/internal/runtime"
)

const (
	maxLineSize    = 1024 * 1024
	readBufferSize = 64 * 1024

	// drainTimeout bounds how long exit handling waits for buffered output.
	// A grandchild that inherited the pipes can hold them open indefinitely.
	drainTimeout = 2 * time.Second

	// exitTailLines is how much output an unexpected exit carries in its log.
	exitTailLines = 20
)

// Status is the outcome of the most recent settled build.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Build is the outcome and log window of the most recent build.
type Build struct {
	Status Status
	Logs   []string
}

type Options struct {
	ID       string
	Key      string
	Port     int
	Address  string
	Recorder metrics.Recorder
}

// Snapshot is a point-in-time view of a dev server for listings.
type Snapshot struct {
	ID        string
	Key       string
	Address   string
	Port      int
	PID       int
	StartedAt time.Time
	Building  bool
	Status    Status
	Exited    bool
	Lines     int
}

// DevServer supervises one watch-mode child. Every output line is appended to
// the log buffer and classified; the build state follows the markers seen.
// Appending a line and applying its transition happen under one lock, so the
// build window always points at a line that is in the buffer.
type DevServer struct {
	id        string
	key       string
	port      int
	address   string
	startedAt time.Time

	proc     *runtime.Process
	buf      *LogBuffer
	recorder metrics.Recorder
	log      *slog.Logger

	mu          sync.Mutex
	building    bool
	status      Status
	windowStart int // -1 until a start marker is seen
	exited      bool
	stopping    bool

	readers sync.WaitGroup
	done    chan struct{}
}

// New begins supervising proc. The server is considered building from the
// start: the initial compile is under way before any marker arrives.
func New(proc *runtime.Process, opts Options) *DevServer {
	d := &DevServer{
		id:          opts.ID,
		key:         opts.Key,
		port:        opts.Port,
		address:     opts.Address,
		startedAt:   time.Now(),
		proc:        proc,
		buf:         NewLogBuffer(),
		recorder:    metrics.OrNoop(opts.Recorder),
		log:         logging.With("component", "devserver", "project", opts.Key, "id", opts.ID),
		building:    true,
		status:      StatusUnknown,
		windowStart: -1,
		done:        make(chan struct{}),
	}

	d.readers.Add(2)
	go d.consume("stdout", proc.Stdout)
	go d.consume("stderr", proc.Stderr)
	go d.watchExit()

	return d
}

// consume reads one stream line by line. Lines within a stream keep their
// order; nothing is promised across stdout and stderr. A line longer than
// maxLineSize is cut at that size and the rest of it is dropped, so a runaway
// line never stops classification of the lines after it.
func (d *DevServer) consume(stream string, r io.ReadCloser) {
	defer d.readers.Done()
	if r == nil {
		return
	}
	defer r.Close()

	br := bufio.NewReaderSize(r, readBufferSize)
	line := make([]byte, 0, readBufferSize)
	truncated := false
	for {
		frag, err := br.ReadSlice('\n')
		if room := maxLineSize - len(line); room > 0 {
			if len(frag) > room {
				frag = frag[:room]
				truncated = true
			}
			line = append(line, frag...)
		} else if len(frag) > 0 {
			truncated = true
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if len(line) > 0 || err == nil {
			text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
			if truncated {
				d.log.Warn("output line truncated", "stream", stream, "limit", maxLineSize)
			}
			d.log.Debug("output", "stream", stream, "line", text)
			d.apply(text)
		}
		line = line[:0]
		truncated = false

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				d.log.Warn("output reader stopped", "stream", stream, "error", err)
			}
			return
		}
	}
}

func (d *DevServer) apply(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.buf.Append(line)
	tr := Classify(line)

	switch tr {
	case BuildStarted:
		// A start marker after exit cannot begin a build.
		if d.exited {
			return
		}
		d.building = true
		d.windowStart = idx
		d.recorder.IncBuildStarted(d.key)
		d.log.Info("build started", "line", idx)
	case BuildSucceeded, WatchIdle:
		d.settle(StatusSuccess, tr)
	case BuildFailed:
		d.settle(StatusFailure, tr)
	}
}

func (d *DevServer) settle(status Status, tr Transition) {
	wasBuilding := d.building
	d.building = false
	d.status = status
	if wasBuilding {
		d.recorder.IncBuildOutcome(d.key, string(status))
		d.log.Info("build settled", "status", status, "marker", tr.String())
	}
}

func (d *DevServer) watchExit() {
	<-d.proc.Done()

	drained := make(chan struct{})
	go func() {
		d.readers.Wait()
		close(drained)
	}()
	timer := time.NewTimer(drainTimeout)
	select {
	case <-drained:
	case <-timer.C:
		d.log.Warn("output still open after exit", "pid", d.proc.PID)
	}
	timer.Stop()

	d.mu.Lock()
	d.exited = true
	// Status is left as last recorded; the exit code is not classified.
	d.building = false
	stopping := d.stopping
	d.mu.Unlock()

	if stopping {
		d.log.Info("process exited", "pid", d.proc.PID, "code", d.proc.ExitCode())
	} else {
		d.log.Warn("process exited unexpectedly", "pid", d.proc.PID, "code", d.proc.ExitCode(),
			"error", d.proc.Wait(), "tail", d.buf.Tail(exitTailLines))
	}
	close(d.done)
}

// MarkStopping records that termination was requested, so the coming exit
// is not reported as a crash.
func (d *DevServer) MarkStopping() {
	d.mu.Lock()
	d.stopping = true
	d.mu.Unlock()
}

// IsBuilding reports the raw building flag with no debouncing.
func (d *DevServer) IsBuilding() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.building
}

func (d *DevServer) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// MostRecentBuild returns the latest status and the log lines from the most
// recent start marker onward. With no start marker seen, the window is the
// whole buffer.
func (d *DevServer) MostRecentBuild() Build {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := d.windowStart
	if start < 0 {
		start = 0
	}
	return Build{Status: d.status, Logs: d.buf.From(start)}
}

// Logs returns every line recorded so far.
func (d *DevServer) Logs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Lines()
}

func (d *DevServer) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		ID:        d.id,
		Key:       d.key,
		Address:   d.address,
		Port:      d.port,
		PID:       d.proc.PID,
		StartedAt: d.startedAt,
		Building:  d.building,
		Status:    d.status,
		Exited:    d.exited,
		Lines:     d.buf.Len(),
	}
}

// Exited reports whether the child has exited.
func (d *DevServer) Exited() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exited
}

// Done is closed once the child has exited, its output has been consumed and
// the state is final.
func (d *DevServer) Done() <-chan struct{} {
	return d.done
}

func (d *DevServer) Process() *runtime.Process { return d.proc }
func (d *DevServer) ID() string                { return d.id }
func (d *DevServer) Key() string               { return d.key }
func (d *DevServer) Address() string           { return d.address }
func (d *DevServer) Port() int                 { return d.port }
