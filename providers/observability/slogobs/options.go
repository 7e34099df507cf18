package slogobs

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects how log records are rendered.
type Format string

const (
	// FormatText renders human-readable key=value records.
	FormatText Format = "text"
	// FormatJSON renders one JSON object per record.
	FormatJSON Format = "json"
)

// Environment variables consulted when no explicit option is given.
const (
	EnvLogFormat = "FINFLOW_LOG_FORMAT"
	EnvLogLevel  = "FINFLOW_LOG_LEVEL"
)

type config struct {
	logger *slog.Logger
	format Format
	level  slog.Level
	output io.Writer
}

// Option configures the slog observer.
type Option func(*config)

// WithLogger uses an existing slog.Logger instead of building one. All
// other options are ignored when a logger is supplied.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithFormat sets the output format (text or json).
func WithFormat(format Format) Option {
	return func(c *config) { c.format = format }
}

// WithLevel sets the minimum level that is logged.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithOutput directs log records to the given writer. Defaults to stderr.
func WithOutput(output io.Writer) Option {
	return func(c *config) { c.output = output }
}

func applyOptions(opts ...Option) config {
	c := config{
		format: formatFromEnv(),
		level:  levelFromEnv(),
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func formatFromEnv() Format {
	switch strings.ToLower(os.Getenv(EnvLogFormat)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv(EnvLogLevel)) {
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
