// Package logger provides structured logging for the game server.
// Every transition of the ER session should be traceable through this.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides structured logging with context.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a JSON logger on stdout at info level.
func NewLogger() *Logger {
	return New(os.Stdout, "info", "json")
}

// New creates a logger writing to w. Format "console" enables the human readable writer.
func New(w io.Writer, level, format string) *Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Str("component", "er").Logger()
	return &Logger{zl: zl}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Debug logs diagnostic messages.
func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

// Error logs error messages.
func (l *Logger) Error(msg string, err error) {
	l.zl.Error().Err(err).Msg(msg)
}

// Event logs a specific game event for the session audit trail.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.zl.Info().Str("event", eventType).Str("actor", actorID).Msg(details)
}

// With returns a child logger carrying an extra field, e.g. the session id.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}
