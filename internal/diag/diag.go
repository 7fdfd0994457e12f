// Package diag is the back end's ambient structured-logging layer: a thin
// wrapper around github.com/rs/zerolog, following the shape of a
// package-level logger initialised once by the CLI driver with a debug
// flag and an optional log-file target, then used throughout the pipeline.
package diag

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-level structured logger cmd/vicis installs once at
// startup (see cmd/vicis/main.go); every package in this module logs
// through it rather than importing zerolog directly, so a test or an
// embedding host can redirect output without touching the lowering or
// liveness packages themselves.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
	With().Timestamp().Logger()

// Init (re)configures Logger: debug enables Debug-level output (pass
// entry/exit, per-function diagnostics); extra, if non-nil, additionally
// receives every log line as JSON (e.g. a log file the CLI's --log-file
// flag opened).
func Init(debug bool, extra io.Writer) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	var w io.Writer = console
	if extra != nil {
		w = zerolog.MultiLevelWriter(console, extra)
	}
	Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Func returns a logger tagged with the function currently being lowered
// or analysed, so pass-entry/exit and per-instruction diagnostics can be
// correlated back to their @name without repeating it at every call site.
func Func(pass, name string) zerolog.Logger {
	return Logger.With().Str("pass", pass).Str("func", name).Logger()
}
