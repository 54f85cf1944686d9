// Package logging configures structured logging for statusq using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output ("debug", "info", "warn", "error").
	Level string

	// Pretty enables colored, human-readable console output instead of JSON.
	Pretty bool

	// Output is the writer logs are written to (default: os.Stderr).
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

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts a level name to a zerolog.Level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: pool internals
//   - Per-worker claim/drain counts
//   - Cache operations (hit/miss, key, TTL)
//   - Individual request outcomes
//
// Info: batch lifecycle
//   - Request URL and worker count at start
//   - Loaded work item count
//   - Final summary (counts, elapsed time)
//
// Warn: non-fatal anomalies
//   - Cache errors (fall back to direct request)
//   - Slot accounting mismatches
//
// Error: setup failures surfaced before the pool starts
//
// Context Fields:
//   - easy_id: the identifier being queried
//   - status_code: HTTP status code
//   - error_class: failure classification (network, protocol, decode)
//   - workers: configured pool size
//   - duration: request or batch duration
