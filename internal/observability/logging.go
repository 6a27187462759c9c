package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerOption adjusts how NewLogger builds its handler.
type LoggerOption func(*loggerSettings)

type loggerSettings struct {
	level slog.Level
	json  bool
	out   io.Writer
}

// WithJSON switches output to JSON lines, matching log_json in the
// configuration.
func WithJSON(json bool) LoggerOption {
	return func(s *loggerSettings) {
		s.json = json
	}
}

// WithWriter redirects log output; tests use it to capture or discard lines.
func WithWriter(w io.Writer) LoggerOption {
	return func(s *loggerSettings) {
		if w != nil {
			s.out = w
		}
	}
}

// WithLevel sets the threshold directly, bypassing level-name parsing.
func WithLevel(level slog.Level) LoggerOption {
	return func(s *loggerSettings) {
		s.level = level
	}
}

// NewLogger builds the process logger from a level name such as "DEBUG" or
// "warn"; unknown names mean INFO. Output goes to stderr: the meshdb CLI
// prints query results as JSON on stdout and the two streams must stay
// separable.
func NewLogger(level string, opts ...LoggerOption) *slog.Logger {
	settings := loggerSettings{
		level: levelFromName(level),
		out:   os.Stderr,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	handlerOpts := &slog.HandlerOptions{Level: settings.level}
	if settings.json {
		return slog.New(slog.NewJSONHandler(settings.out, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(settings.out, handlerOpts))
}

// Component tags a child logger with the subsystem it logs for. The capture
// daemon runs storage, mqtt, pipeline and the observability server in one
// process; the tag keeps their lines filterable.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		return NoOpLogger()
	}
	return logger.With(slog.String("component", name))
}

// NoOpLogger returns a logger whose output is discarded.
func NoOpLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func levelFromName(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
