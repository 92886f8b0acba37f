package process

import "sync"

// LogBuffer is an append-only line buffer. It grows for the lifetime of the
// process it records and is never truncated.
type LogBuffer struct {
	mu    sync.RWMutex
	lines []string
}

func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

// Append adds line and returns its index.
func (b *LogBuffer) Append(line string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	return len(b.lines) - 1
}

// Lines returns a copy of every line.
func (b *LogBuffer) Lines() []string {
	return b.From(0)
}

// From returns a copy of the lines starting at index start. A start past the
// end yields an empty, non-nil slice.
func (b *LogBuffer) From(start int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if start < 0 {
		start = 0
	}
	if start > len(b.lines) {
		start = len(b.lines)
	}
	out := make([]string, len(b.lines)-start)
	copy(out, b.lines[start:])
	return out
}

func (b *LogBuffer) Tail(n int) []string {
	b.mu.RLock()
	l := len(b.lines)
	b.mu.RUnlock()
	if n <= 0 {
		return []string{}
	}
	return b.From(l - n)
}

func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}
