// Package logging configures the process-wide slog logger.
//
// Two setups are provided: a text logger for interactive CLI use and a JSON
// logger carrying service attributes for log collection. The level is always
// passed in by the caller; this package does not read the environment.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLogLevel converts a level name to a slog.Level. Unknown or empty
// names map to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResolveLevel returns debug when debug is set, otherwise the parsed name.
func ResolveLevel(debug bool, name string) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return ParseLogLevel(name)
}

// NewCLILogger returns a text logger writing to w.
func NewCLILogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewStructuredLogger returns a JSON logger writing to w with service
// name and version attached to every record.
func NewStructuredLogger(w io.Writer, name, version string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: level == slog.LevelDebug,
		Level:     level,
	})
	return slog.New(h).With(
		slog.String("service", name),
		slog.String("version", version),
	)
}

// SetDefaultCLILogger installs a text logger on stderr as the default.
func SetDefaultCLILogger(level slog.Level) {
	slog.SetDefault(NewCLILogger(os.Stderr, level))
}

// SetDefaultStructuredLogger installs a JSON logger on stderr as the default.
func SetDefaultStructuredLogger(name, version string, level slog.Level) {
	slog.SetDefault(NewStructuredLogger(os.Stderr, name, version, level))
}
