// Package logging builds the zerolog loggers used across cellroute.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var base = New(os.Stderr, "info")

// New returns a console logger writing to out at the given level. Unknown
// levels fall back to info.
func New(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

// SetLevel replaces the base logger with one at level.
func SetLevel(level string) {
	base = New(os.Stderr, level)
}

// Base returns the process-wide logger.
func Base() zerolog.Logger {
	return base
}

// Component returns the base logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
