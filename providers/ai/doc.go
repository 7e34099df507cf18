// Package ai defines the provider-agnostic chat-completion contract the
// workflow engine depends on: a request with messages, optional tool
// descriptions, and an optional structured-output schema, answered by a
// completed response. Concrete providers live in subpackages and handle
// their own wire formats.
package ai
