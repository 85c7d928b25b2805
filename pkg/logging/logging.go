// Package logging owns the process logger for bagbrowser.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger *zerolog.Logger

func init() {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger = &l
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Init configures the process logger. debug lowers the level to Debug and
// human switches JSON output for a console writer.
func Init(debug, human bool) {
	l := New(os.Stderr, debug, human)
	logger = &l
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// New builds a logger writing to w.
func New(w io.Writer, debug, human bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	if human {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// L returns the process logger.
func L() *zerolog.Logger {
	return logger
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// SetLogger replaces the process logger. Intended for tests.
func SetLogger(l zerolog.Logger) {
	logger = &l
}
