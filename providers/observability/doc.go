// Package observability defines the tracing, metrics, and structured
// logging interfaces used throughout finflow. The entry point is
// [Provider], which composes [Tracer], [Metrics], and [Logger] into a
// single injectable dependency. An active [Span] travels through a
// context.Context via [ContextWithSpan] and [SpanFromContext].
//
// semconv.go holds the attribute-key and span-name constants that keep
// observations consistent across the engine, nodes, and stores.
package observability
