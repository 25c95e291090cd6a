// Package logsink writes the append-only run log: the assembled command, raw
// crawler output and exit status of every run.
package logsink

import (
	"runtime"
	"strings"
	"sync"
)

const (
	infoPrefix  = "[INFO] "
	errorPrefix = "[ERROR] "
)

// Sink receives run log lines. Implementations must be safe for concurrent
// use; every call produces exactly one line.
type Sink interface {
	// Info writes "[INFO] msg".
	Info(msg string)
	// Error writes "[ERROR] msg".
	Error(msg string)
	// Line writes a raw process output line without a prefix.
	Line(raw string)
	// Command writes "[INFO] full command: display" and echoes it to the
	// console mirror, if any.
	Command(display string)
}

// LineSeparator ends every run log line.
var LineSeparator = lineSeparator()

func lineSeparator() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

func commandLine(display string) string {
	return infoPrefix + "full command: " + display
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Info(string)    {}
func (discard) Error(string)   {}
func (discard) Line(string)    {}
func (discard) Command(string) {}

// Memory keeps lines in memory, already prefixed and without separators.
type Memory struct {
	mu    sync.Mutex
	lines []string
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) add(line string) {
	m.mu.Lock()
	m.lines = append(m.lines, line)
	m.mu.Unlock()
}

func (m *Memory) Info(msg string)        { m.add(infoPrefix + msg) }
func (m *Memory) Error(msg string)       { m.add(errorPrefix + msg) }
func (m *Memory) Line(raw string)        { m.add(raw) }
func (m *Memory) Command(display string) { m.add(commandLine(display)) }

// Lines returns a copy of everything written so far.
func (m *Memory) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Count returns how many lines start with prefix.
func (m *Memory) Count(prefix string) int {
	n := 0
	for _, l := range m.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

// String joins all lines with "\n".
func (m *Memory) String() string {
	return strings.Join(m.Lines(), "\n")
}
