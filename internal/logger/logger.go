// Package logger provides leveled logging for synchronoux.
// Debug and info messages are only written in verbose mode (--verbose);
// errors are always written. Output is human-readable by default and
// JSON lines with --log-json.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	verbose bool
	jsonOut bool
	output  io.Writer = os.Stderr
	current           = build(os.Stderr, false, false)
)

// build must be called with mu held for writing (or during init).
func build(w io.Writer, verbose, jsonOut bool) zerolog.Logger {
	w = zerolog.SyncWriter(w)
	if !jsonOut {
		w = zerolog.ConsoleWriter{
			Out:          w,
			NoColor:      true,
			PartsExclude: []string{zerolog.TimestampFieldName},
		}
	}
	level := zerolog.ErrorLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	current = build(output, verbose, jsonOut)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetJSON switches between console and JSON-lines output.
func SetJSON(v bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonOut = v
	current = build(output, verbose, jsonOut)
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	current = build(output, verbose, jsonOut)
}

// L returns the underlying logger for structured fields.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := current
	return &l
}

// Debug logs a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	L().Debug().Msgf(format, args...)
}

// Section logs a section header if verbose mode is enabled.
func Section(name string) {
	L().Info().Msgf("=== %s ===", name)
}

// Info logs an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	L().Info().Msgf(format, args...)
}

// Warn logs a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	L().Warn().Msgf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...any) {
	L().Error().Msgf(format, args...)
}
