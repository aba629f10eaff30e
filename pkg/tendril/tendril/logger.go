package tendril

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sambeau/tendril/pkg/tendril/bridge"
)

// Logger receives script output from print and tendril.log.
type Logger = bridge.Logger

// StdoutLogger sends script output to standard output.
func StdoutLogger() Logger {
	return WriterLogger(os.Stdout)
}

// WriterLogger sends script output to w, one LogLine per line.
func WriterLogger(w io.Writer) Logger {
	return &writerLogger{w: w}
}

type writerLogger struct {
	w io.Writer
}

func (l *writerLogger) Log(values ...any) {
	io.WriteString(l.w, joinValues(values))
}

func (l *writerLogger) LogLine(values ...any) {
	io.WriteString(l.w, joinValues(values)+"\n")
}

// BufferedLogger keeps script output in memory. Text from Log stays
// pending until the next LogLine completes it.
type BufferedLogger struct {
	mu      sync.Mutex
	lines   []string
	pending strings.Builder
}

func NewBufferedLogger() *BufferedLogger {
	return &BufferedLogger{}
}

func (l *BufferedLogger) Log(values ...any) {
	l.mu.Lock()
	l.pending.WriteString(joinValues(values))
	l.mu.Unlock()
}

func (l *BufferedLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, l.pending.String()+joinValues(values))
	l.pending.Reset()
}

// String is every completed line, newline-terminated, followed by any
// pending text.
func (l *BufferedLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sb strings.Builder
	for _, line := range l.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString(l.pending.String())
	return sb.String()
}

// Lines returns a copy of the completed lines.
func (l *BufferedLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func (l *BufferedLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
	l.pending.Reset()
}

type nullLogger struct{}

func (nullLogger) Log(...any)     {}
func (nullLogger) LogLine(...any) {}

// NullLogger drops script output.
func NullLogger() Logger {
	return nullLogger{}
}

// joinValues renders values with fmt's default format, space-separated.
func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
