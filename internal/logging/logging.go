// Package logging sets up the process-wide zerolog logger used for
// structured, leveled progress and error reporting during a run.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to w (typically os.Stderr) at level,
// tagged with a fresh run identifier. verbose selects debug-level output;
// otherwise info is the floor.
func New(w io.Writer, verbose bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}

	return zerolog.New(console).
		Level(level).
		With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
}

// Discard returns a logger that drops everything, for use in tests that
// don't want console noise.
func Discard() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// init keeps zerolog's global default pointed at stderr even before New is
// called, so a package that logs before setup (e.g. early flag errors)
// still produces readable output instead of silently no-oping.
func init() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}
