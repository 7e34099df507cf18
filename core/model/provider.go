package model

import (
	"fmt"

	"github.com/finflow-ai/finflow/providers/ai"
	"github.com/finflow-ai/finflow/providers/ai/openai"
)

// NewProvider builds the chat-completion client for a resolved Config.
// The engine treats providers as opaque; request shaping is each
// implementation's concern. "openai" also covers OpenAI-compatible
// gateways via Config.BaseURL. An unrecognized provider name fails fast.
func NewProvider(config Config) (ai.Provider, error) {
	switch config.Provider {
	case "openai", "openai-compatible":
		provider := openai.New().WithAPIKey(config.APIKey)
		if config.BaseURL != "" {
			provider = provider.WithBaseURL(config.BaseURL)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("provider %q: %w", config.Provider, ErrUnknownProvider)
	}
}
