package model

import "errors"

var (
	// ErrUnknownClass is returned when resolving an LLM class outside the
	// basic/reasoning/coding/economic set.
	ErrUnknownClass = errors.New("unknown llm class")

	// ErrNoModel is returned when resolution completes without a model name.
	ErrNoModel = errors.New("no model configured")

	// ErrUnknownProvider is returned when a resolved Config names a provider
	// with no registered implementation.
	ErrUnknownProvider = errors.New("unknown llm provider")
)
