package server

import (
	"context"
	"time"

	"github.com/justinpbarnett/devwatch/internal/process"
)

// WaitStatus is the outcome of WaitForBuild.
type WaitStatus string

const (
	WaitSuccess          WaitStatus = "success"
	WaitFailure          WaitStatus = "failure"
	WaitUnknown          WaitStatus = "unknown"
	WaitTimeout          WaitStatus = "timeout"
	WaitNoDevServerFound WaitStatus = "no_devserver_found"
)

type WaitResult struct {
	Status WaitStatus `json:"status"`
	Logs   []string   `json:"logs,omitempty"`
}

// WaitForBuild blocks until the project's current build settles and returns
// its outcome and log window. It sleeps one watch delay before the first
// check so that a caller who has just edited a file does not see the state
// from before the watcher noticed. A timeout <= 0 selects the configured
// default. Cancelling ctx ends the wait as a timeout.
func (r *Registry) WaitForBuild(ctx context.Context, project string, timeout time.Duration) WaitResult {
	began := time.Now()
	res := r.waitForBuild(ctx, ProjectKey(project), timeout)
	r.recorder.ObserveWait(string(res.Status), time.Since(began))
	return res
}

func (r *Registry) waitForBuild(ctx context.Context, key string, timeout time.Duration) WaitResult {
	r.mu.Lock()
	ds, ok := r.servers[key]
	r.mu.Unlock()
	if !ok {
		return WaitResult{Status: WaitNoDevServerFound}
	}

	if timeout <= 0 {
		timeout = r.opts.DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	if !sleep(ctx, r.opts.WatchDelay) {
		return WaitResult{Status: WaitTimeout}
	}
	for {
		if !ds.IsBuilding() {
			b := ds.MostRecentBuild()
			return WaitResult{Status: statusOf(b.Status), Logs: b.Logs}
		}
		if time.Now().After(deadline) {
			r.log.Debug("wait timed out", "project", key, "timeout", timeout)
			return WaitResult{Status: WaitTimeout}
		}
		if !sleep(ctx, r.opts.WatchDelay) {
			return WaitResult{Status: WaitTimeout}
		}
	}
}

func statusOf(s process.Status) WaitStatus {
	switch s {
	case process.StatusSuccess:
		return WaitSuccess
	case process.StatusFailure:
		return WaitFailure
	default:
		return WaitUnknown
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
