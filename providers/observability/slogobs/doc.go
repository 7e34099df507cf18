// Package slogobs implements observability.Provider on top of the
// standard library's log/slog. Spans and metrics are rendered as
// structured log records, which keeps the engine observable without an
// external telemetry backend.
package slogobs
