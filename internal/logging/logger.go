// Package logging provides structured, per-component logging for the upload
// orchestrator.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with a fixed "component" field so log lines from the
// queue, the worker, the lock store, etc. can be told apart at a glance.
type Logger struct {
	zlog      zerolog.Logger
	component string
	output    io.Writer
}

// New creates a logger for the named component ("queue", "uploadworker",
// "lockstore", "liaison", ...), writing console-formatted output to stdout.
func New(component string) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("component", component).
		Logger()

	return &Logger{zlog: zlog, component: component, output: output}
}

// NewDefault returns a logger for an unnamed top-level component.
func NewDefault() *Logger {
	return New("uploadcore")
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event { return l.zlog.Info() }

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event { return l.zlog.Warn() }

// Fatal returns a fatal level event.
func (l *Logger) Fatal() *zerolog.Event { return l.zlog.Fatal() }

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context { return l.zlog.With() }

// SetOutput redirects this logger's output, preserving console formatting.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.zlog = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Str("component", l.component).Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer { return l.output }

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) { l.zlog.Debug().Msgf(format, args...) }

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) { l.zlog.Info().Msgf(format, args...) }

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) { l.zlog.Error().Msgf(format, args...) }

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) { l.zlog.Warn().Msgf(format, args...) }

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
