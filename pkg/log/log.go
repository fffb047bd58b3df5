// Package log provides kadtransport's shared logging entry point.
//
// Built directly on the standard library's log/slog, following the
// teacher's own pkg/lib/log convention rather than a third-party logging
// facade.
package log

import (
	"io"
	"log/slog"
	"os"
)

var defaultLogger = slog.Default()

// SetDefault replaces the package-wide default logger.
func SetDefault(l *slog.Logger) {
	defaultLogger = l
	slog.SetDefault(l)
}

// Default returns the current default logger.
func Default() *slog.Logger {
	return slog.Default()
}

// New creates a text-handler logger writing to w, falling back to
// opts' zero value (info level, no source) when opts is nil.
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetOutput redirects the default logger's output, e.g. to a file opened
// by the calling process.
func SetOutput(w io.Writer) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	defaultLogger = slog.New(slog.NewTextHandler(w, opts))
	slog.SetDefault(defaultLogger)
}

// LazyLogger re-reads slog.Default() on every call instead of caching a
// handler, so a component holding one picks up a later SetDefault/
// SetOutput automatically.
type LazyLogger struct {
	component string
}

// Logger returns a logger scoped to component, e.g. log.Logger("sender").
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// Debug logs msg at debug level with the given key-value args.
func (l *LazyLogger) Debug(msg string, args ...any) {
	slog.Default().With("component", l.component).Debug(msg, args...)
}

// Info logs msg at info level with the given key-value args.
func (l *LazyLogger) Info(msg string, args ...any) {
	slog.Default().With("component", l.component).Info(msg, args...)
}

// Warn logs msg at warn level with the given key-value args.
func (l *LazyLogger) Warn(msg string, args ...any) {
	slog.Default().With("component", l.component).Warn(msg, args...)
}

// Error logs msg at error level with the given key-value args.
func (l *LazyLogger) Error(msg string, args ...any) {
	slog.Default().With("component", l.component).Error(msg, args...)
}

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
