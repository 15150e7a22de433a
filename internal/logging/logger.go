// Package logging builds the zerolog loggers used by the interception engine.
// Every line carries the component tag so host-side log readers can filter on it.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// Component tags every line emitted by the engine.
const Component = "AppDebug"

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// Config contains logger configuration.
type Config struct {
	// Level sets the logging level (trace, debug, info, warn, error).
	Level string
	// Pretty enables human-readable console output.
	Pretty bool
	// Output sets the output writer (defaults to os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stderr,
	}
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a zerolog logger tagged with Component.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
			NoColor:    true,
		}
	}

	return zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("component", Component).
		Logger()
}

// NewAsync is New behind a non-blocking diode writer. Lines are dropped
// rather than stalling the caller when the writer falls behind. The returned
// closer flushes and stops the writer.
func NewAsync(cfg Config) (zerolog.Logger, io.Closer) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	w := diode.NewWriter(out, 1000, 10*time.Millisecond, func(missed int) {
		fmt.Fprintf(os.Stderr, "%s: dropped %d log lines\n", Component, missed)
	})
	cfg.Output = w
	return New(cfg), w
}
