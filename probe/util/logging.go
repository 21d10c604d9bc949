package util

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the console logger handed down into every component.
// Components receive the logger by value; there is no process-global
// logging state to contend on when device workers run in parallel.
func NewLogger(out io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
