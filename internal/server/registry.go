package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justinpbarnett/devwatch/internal/logging"
	"github.com/justinpbarnett/devwatch/internal/metrics"
	"github.com/justinpbarnett/devwatch/internal/process"
	"github.com/justinpbarnett/devwatch/internal/runtime"
)

// DefaultProjectKey is the registry key used when no project is named.
const DefaultProjectKey = "<default>"

const (
	defaultWatchDelay = time.Second
	defaultTimeout    = 180 * time.Second
	defaultHost       = "localhost"
)

var defaultCommand = []string{"npx", "ng"}

type Options struct {
	// Command is the CLI invocation, e.g. ["npx", "ng"]. "serve" and the
	// port flag are appended to it.
	Command   []string
	Workspace string
	// Host is used in the advertised address only; the dev server binds
	// wherever the CLI decides.
	Host           string
	ExtraArgs      []string
	WatchDelay     time.Duration
	DefaultTimeout time.Duration
	Recorder       metrics.Recorder
}

// StartResult is returned by Start. Address is set whenever a server is
// running for the key after the call.
type StartResult struct {
	Message string `json:"message"`
	Address string `json:"address,omitempty"`
}

type StopResult struct {
	Message string   `json:"message"`
	Logs    []string `json:"logs,omitempty"`
}

// Registry owns every supervised dev server, at most one per project key.
type Registry struct {
	host     runtime.Host
	opts     Options
	recorder metrics.Recorder
	log      *slog.Logger

	mu       sync.Mutex
	servers  map[string]*process.DevServer
	starting map[string]chan struct{}
}

func NewRegistry(host runtime.Host, opts Options) *Registry {
	if len(opts.Command) == 0 {
		opts.Command = defaultCommand
	}
	if opts.Host == "" {
		opts.Host = defaultHost
	}
	if opts.WatchDelay <= 0 {
		opts.WatchDelay = defaultWatchDelay
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaultTimeout
	}
	return &Registry{
		host:     host,
		opts:     opts,
		recorder: metrics.OrNoop(opts.Recorder),
		log:      logging.With("component", "registry"),
		servers:  make(map[string]*process.DevServer),
		starting: make(map[string]chan struct{}),
	}
}

// ProjectKey maps an optional project name to its registry key.
func ProjectKey(project string) string {
	if project == "" {
		return DefaultProjectKey
	}
	return project
}

// Start launches a dev server for project unless one is already running.
// It returns as soon as the child is spawned; the first build is not
// awaited. The key is reserved under the registry lock before the port is
// allocated and the child spawned, so concurrent starts for one key spawn a
// single process while other keys stay available. A caller that finds a
// start in flight waits for it and reports its outcome.
func (r *Registry) Start(ctx context.Context, project string) StartResult {
	key := ProjectKey(project)

	r.mu.Lock()
	ds, err := r.awaitPending(ctx, key)
	if err != nil {
		r.mu.Unlock()
		return StartResult{Message: fmt.Sprintf("Failed to start development server for %s: %v", describe(key), err)}
	}
	if ds != nil {
		r.mu.Unlock()
		return StartResult{
			Message: fmt.Sprintf("Development server for %s is already running.", describe(key)),
			Address: ds.Address(),
		}
	}
	done := make(chan struct{})
	r.starting[key] = done
	r.mu.Unlock()

	ds, err = r.spawn(ctx, project, key)

	r.mu.Lock()
	delete(r.starting, key)
	if err == nil {
		r.servers[key] = ds
		r.recorder.SetRunning(len(r.servers))
	}
	r.mu.Unlock()
	close(done)

	if err != nil {
		return StartResult{Message: fmt.Sprintf("Failed to start development server for %s: %v", describe(key), err)}
	}
	go r.reap(key, ds)

	r.log.Info("dev server started", "project", key, "id", ds.ID(), "pid", ds.Process().PID, "address", ds.Address())
	return StartResult{
		Message: fmt.Sprintf("Development server for %s started and watching for workspace changes.", describe(key)),
		Address: ds.Address(),
	}
}

// awaitPending waits out any start in flight for key and returns the server
// now registered under it, or nil. r.mu must be held; it is released while
// waiting and held again on return.
func (r *Registry) awaitPending(ctx context.Context, key string) (*process.DevServer, error) {
	for {
		if ds, ok := r.servers[key]; ok {
			return ds, nil
		}
		pending, ok := r.starting[key]
		if !ok {
			return nil, nil
		}
		r.mu.Unlock()
		select {
		case <-pending:
			r.mu.Lock()
		case <-ctx.Done():
			r.mu.Lock()
			return nil, ctx.Err()
		}
	}
}

// spawn allocates a port and starts the child. It runs without r.mu.
func (r *Registry) spawn(ctx context.Context, project, key string) (*process.DevServer, error) {
	port, err := r.host.FreePort()
	if err != nil {
		r.log.Error("allocate port", "project", key, "error", err)
		return nil, err
	}

	spec := r.command(project, port)
	proc, err := r.host.Start(ctx, spec)
	if err != nil {
		r.host.ReleasePort(port)
		r.log.Error("spawn dev server", "project", key, "command", spec.Command, "error", err)
		return nil, err
	}

	return process.New(proc, process.Options{
		ID:       uuid.NewString(),
		Key:      key,
		Port:     port,
		Address:  fmt.Sprintf("http://%s:%d/", r.opts.Host, port),
		Recorder: r.recorder,
	}), nil
}

// Stop requests termination and removes the entry. It does not wait for the
// child to exit; the returned logs are everything recorded up to now. A start
// in flight for the key is allowed to finish first so that it is stopped too.
func (r *Registry) Stop(project string) StopResult {
	key := ProjectKey(project)

	r.mu.Lock()
	ds, _ := r.awaitPending(context.Background(), key)
	if ds != nil {
		delete(r.servers, key)
		r.recorder.SetRunning(len(r.servers))
	}
	r.mu.Unlock()

	if ds == nil {
		return StopResult{Message: fmt.Sprintf("Development server for %s was not running.", describe(key))}
	}

	r.terminate(ds)
	return StopResult{
		Message: fmt.Sprintf("Development server for %s stopped.", describe(key)),
		Logs:    ds.Logs(),
	}
}

// StopAll stops every running dev server, including any whose start is in
// flight, and returns how many were stopped.
func (r *Registry) StopAll() int {
	r.mu.Lock()
	for len(r.starting) > 0 {
		var pending chan struct{}
		for _, ch := range r.starting {
			pending = ch
			break
		}
		r.mu.Unlock()
		<-pending
		r.mu.Lock()
	}
	servers := make([]*process.DevServer, 0, len(r.servers))
	for key, ds := range r.servers {
		servers = append(servers, ds)
		delete(r.servers, key)
	}
	r.recorder.SetRunning(0)
	r.mu.Unlock()

	for _, ds := range servers {
		r.terminate(ds)
	}
	return len(servers)
}

// Get returns the dev server for project, or nil.
func (r *Registry) Get(project string) *process.DevServer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.servers[ProjectKey(project)]
}

// List returns a snapshot of every running dev server, ordered by key.
func (r *Registry) List() []process.Snapshot {
	r.mu.Lock()
	servers := make([]*process.DevServer, 0, len(r.servers))
	for _, ds := range r.servers {
		servers = append(servers, ds)
	}
	r.mu.Unlock()

	out := make([]process.Snapshot, 0, len(servers))
	for _, ds := range servers {
		out = append(out, ds.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *Registry) terminate(ds *process.DevServer) {
	ds.MarkStopping()
	if err := r.host.Stop(ds.Process()); err != nil {
		r.log.Warn("stop dev server", "project", ds.Key(), "id", ds.ID(), "error", err)
	}
	r.log.Info("dev server stop requested", "project", ds.Key(), "id", ds.ID())
}

// reap waits for the child to exit, frees its port and drops the entry if it
// still belongs to this instance. A replacement started after Stop is left
// alone.
func (r *Registry) reap(key string, ds *process.DevServer) {
	<-ds.Done()
	r.host.ReleasePort(ds.Port())

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.servers[key]; ok && cur == ds {
		delete(r.servers, key)
		r.recorder.SetRunning(len(r.servers))
		r.log.Warn("dev server removed after exit", "project", key, "id", ds.ID())
	}
}

// command builds `<cli> serve [project] --port=<port> [extra...]`. When the
// CLI is ng and the workspace has a local install, that binary is used
// directly.
func (r *Registry) command(project string, port int) runtime.Spec {
	cli := r.opts.Command
	if cli[len(cli)-1] == "ng" {
		local := filepath.Join(r.opts.Workspace, "node_modules", ".bin", "ng")
		if r.host.FileExists(local) {
			cli = []string{local}
		}
	}

	args := append([]string{}, cli[1:]...)
	args = append(args, "serve")
	if project != "" {
		args = append(args, project)
	}
	args = append(args, "--port="+strconv.Itoa(port))
	args = append(args, r.opts.ExtraArgs...)

	return runtime.Spec{Command: cli[0], Args: args, Dir: r.opts.Workspace}
}

func describe(key string) string {
	if key == DefaultProjectKey {
		return "the default project"
	}
	return fmt.Sprintf("project '%s'", key)
}
