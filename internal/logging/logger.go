// Package logging wraps charmbracelet/log with the options this service reads
// from its configuration.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Logger is a wrapper around the log.Logger from the charmbracelet/log package.
type Logger struct {
	*log.Logger
}

// Options configures a Logger.
type Options struct {
	Level  string
	Format string
	Prefix string
	Output io.Writer
}

// New builds a Logger. Unknown levels fall back to info, unknown formats to text.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
	}

	base := log.NewWithOptions(out, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter(opts.Format),
	})

	return &Logger{Logger: base}
}

// Discard returns a Logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: log.New(io.Discard)}
}

// With returns a child logger that always includes the given key-value pairs.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...)}
}

func formatter(format string) log.Formatter {
	switch format {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
