package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes leveled, component-tagged lines. Debug and Info are only
// emitted in verbose mode; Warn and Error are always written.
type Logger struct {
	component string
	verbose   bool
	fields    []Field
	out       *output
}

type output struct {
	mu     sync.Mutex
	writer io.Writer
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// New creates a logger writing to stderr.
func New(component string, verbose bool) *Logger {
	return NewWithWriter(component, verbose, os.Stderr)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(component string, verbose bool, w io.Writer) *Logger {
	return &Logger{component: component, verbose: verbose, out: &output{writer: w}}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithWriter("", false, io.Discard)
}

// WithComponent returns a logger sharing the same output under another component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component, verbose: l.verbose, fields: l.fields, out: l.out}
}

// With returns a logger that appends fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{component: l.component, verbose: l.verbose, fields: merged, out: l.out}
}

// IsVerbose reports whether Debug and Info lines are written.
func (l *Logger) IsVerbose() bool { return l.verbose }

func (l *Logger) Debug(msg string, fields ...Field) {
	if l.verbose {
		l.log("DEBUG", msg, fields)
	}
}

func (l *Logger) Info(msg string, fields ...Field) {
	if l.verbose {
		l.log("INFO", msg, fields)
	}
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.log("WARN", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields)
}

func (l *Logger) log(level, msg string, fields []Field) {
	component := l.component
	if component == "" {
		component = "main"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s [%s] %s", time.Now().Format("15:04:05.000"), level, component, msg)

	all := fields
	if len(l.fields) > 0 {
		all = append(append([]Field{}, l.fields...), fields...)
	}
	if len(all) > 0 {
		parts := make([]string, 0, len(all))
		for _, f := range all {
			parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, " "))
		b.WriteString("]")
	}
	b.WriteByte('\n')

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = io.WriteString(l.out.writer, b.String())
}

// Helper functions for common field types
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

func Count(value int) Field {
	return Field{Key: "count", Value: value}
}

func Duration(d time.Duration) Field {
	return Field{Key: "duration", Value: d}
}

func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
