// Package parse converts raw LLM text output into typed values. Models
// routinely wrap JSON in markdown fences or surrounding prose and emit
// slightly malformed payloads, so parsing applies a layered recovery
// strategy (candidate extraction, then automatic JSON repair) before
// giving up with an error. The single entry point is the generic
// [StringAs] function.
package parse
