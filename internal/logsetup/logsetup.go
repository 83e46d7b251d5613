package logsetup

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a human-readable logger writing to w. Debug enables the
// protocol traces; otherwise only warnings and errors are shown so that
// stdout and stderr stay quiet on success.
func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return NewWithLevel(w, level)
}

// NewWithLevel returns a human-readable logger writing to w at level
func NewWithLevel(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
