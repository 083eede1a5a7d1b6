package telemetry

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	clog "github.com/charmbracelet/log"
)

// Logger writes JSON lines to a file; the terminal belongs to the UI.
type Logger struct {
	l *clog.Logger
	w io.WriteCloser
}

func New(path string, debug bool) (*Logger, error) {
	if path == "" {
		return Discard(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return newLogger(f, debug), nil
}

func Discard() *Logger {
	return newLogger(nopCloser{Writer: io.Discard}, false)
}

// NewWriter logs to w; mostly useful in tests.
func NewWriter(w io.Writer, debug bool) *Logger {
	return newLogger(nopCloser{Writer: w}, debug)
}

func newLogger(w io.WriteCloser, debug bool) *Logger {
	level := clog.InfoLevel
	if debug {
		level = clog.DebugLevel
	}
	l := clog.NewWithOptions(w, clog.Options{
		Level:           level,
		Formatter:       clog.JSONFormatter,
		ReportTimestamp: true,
		Prefix:          "lcterm",
	})
	return &Logger{l: l, w: w}
}

func (l *Logger) Debug(msg string, fields map[string]any) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Debug(msg, keyvals(fields)...)
}

func (l *Logger) Info(msg string, fields map[string]any) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Info(msg, keyvals(fields)...)
}

func (l *Logger) Warn(msg string, fields map[string]any) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Warn(msg, keyvals(fields)...)
}

func (l *Logger) Error(msg string, fields map[string]any) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Error(msg, keyvals(fields)...)
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	if l == nil || l.l == nil {
		return l
	}
	return &Logger{l: l.l.With(keyvals(fields)...), w: l.w}
}

func (l *Logger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}
	return l.w.Close()
}

func keyvals(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, fields[k])
	}
	return out
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
