package process

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Transition is the lifecycle change a single log line signals.
type Transition int

const (
	TransitionNone Transition = iota
	BuildStarted
	BuildSucceeded
	BuildFailed
	// WatchIdle is the "watching for file changes" ready state. It settles a
	// build as successful.
	WatchIdle
)

func (t Transition) String() string {
	switch t {
	case BuildStarted:
		return "build_started"
	case BuildSucceeded:
		return "build_succeeded"
	case BuildFailed:
		return "build_failed"
	case WatchIdle:
		return "watch_idle"
	default:
		return "none"
	}
}

// Marker pairs a line prefix emitted by the watch process with the
// transition it signals.
type Marker struct {
	Prefix     string
	Transition Transition
}

// Markers is matched in order; the first prefix match wins. The literals
// reproduce the dev server's output byte for byte.
var Markers = []Marker{
	{"❯ Changes detected. Rebuilding...", BuildStarted},
	{"Application bundle generation complete.", BuildSucceeded},
	{"Watch mode enabled. Watching for file changes...", WatchIdle},
	{"✔ Changes detected. Rebuilding...", BuildSucceeded},
	{"Application bundle generation failed.", BuildFailed},
}

// Classify maps a raw output line to a transition. Terminal styling is
// stripped before matching, so coloured output classifies the same as plain.
func Classify(line string) Transition {
	plain := ansi.Strip(line)
	for _, m := range Markers {
		if strings.HasPrefix(plain, m.Prefix) {
			return m.Transition
		}
	}
	return TransitionNone
}
