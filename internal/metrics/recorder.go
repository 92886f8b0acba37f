// Package metrics exposes dev server supervision counters. Every component
// takes a Recorder so metrics stay optional.
package metrics

import "time"

// Recorder receives lifecycle observations from the supervisor.
type Recorder interface {
	IncBuildStarted(project string)
	IncBuildOutcome(project, status string) // status: success|failure
	ObserveWait(status string, d time.Duration)
	SetRunning(n int)
}

// NoopRecorder is used when metrics are not configured.
type NoopRecorder struct{}

func (NoopRecorder) IncBuildStarted(string)            {}
func (NoopRecorder) IncBuildOutcome(string, string)    {}
func (NoopRecorder) ObserveWait(string, time.Duration) {}
func (NoopRecorder) SetRunning(int)                    {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
