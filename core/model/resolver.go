package model

import (
	"fmt"
	"os"
	"strings"
)

// Config is the concrete resolution of an LLM class: which model to call,
// through which provider, and with which credentials.
type Config struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// Environment variables consulted when neither an override nor an explicit
// configuration supplies a value. Loaded from .env by the binary via
// godotenv, read here through os.Getenv.
const (
	EnvOpenAIAPIKey  = "FINFLOW_OPENAI_API_KEY"
	EnvOpenAIBaseURL = "FINFLOW_OPENAI_BASE_URL"
)

// builtin model defaults per class, used when the matching FINFLOW_*_MODEL
// variable is unset.
var defaultModels = map[Class]string{
	ClassBasic:     "gpt-4o-mini",
	ClassReasoning: "o4-mini",
	ClassCoding:    "gpt-4.1",
	ClassEconomic:  "gpt-4o",
}

// Resolve maps an LLM class to a concrete Config.
//
// Resolution order:
//  1. overrides[class], when it supplies a model;
//  2. FINFLOW_<CLASS>_MODEL / FINFLOW_<CLASS>_PROVIDER from the environment;
//  3. builtin defaults per class.
//
// A class outside the known set is a hard configuration error: model
// resolution failures are not recoverable per call, unlike the soft
// degrade applied to malformed LLM output.
func Resolve(class Class, overrides map[Class]Config) (Config, error) {
	if _, known := defaultModels[class]; !known {
		return Config{}, fmt.Errorf("resolve llm class %q: %w", class, ErrUnknownClass)
	}

	config := Config{
		Provider: "openai",
		Model:    defaultModels[class],
		BaseURL:  os.Getenv(EnvOpenAIBaseURL),
		APIKey:   os.Getenv(EnvOpenAIAPIKey),
	}

	prefix := "FINFLOW_" + strings.ToUpper(string(class))
	if envModel := os.Getenv(prefix + "_MODEL"); envModel != "" {
		config.Model = envModel
	}
	if envProvider := os.Getenv(prefix + "_PROVIDER"); envProvider != "" {
		config.Provider = envProvider
	}

	if override, ok := overrides[class]; ok {
		if override.Model != "" {
			config.Model = override.Model
		}
		if override.Provider != "" {
			config.Provider = override.Provider
		}
		if override.BaseURL != "" {
			config.BaseURL = override.BaseURL
		}
		if override.APIKey != "" {
			config.APIKey = override.APIKey
		}
	}

	if config.Model == "" {
		return Config{}, fmt.Errorf("resolve llm class %q: %w", class, ErrNoModel)
	}

	return config, nil
}
