// Package openai implements ai.Provider against the OpenAI chat
// completions API. Setting a custom base URL makes it work with any
// OpenAI-compatible gateway.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/finflow-ai/finflow/providers/ai"
	"github.com/finflow-ai/finflow/providers/observability"
)

const (
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"
)

// Provider implements ai.Provider for the OpenAI chat completions API.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ ai.Provider = (*Provider)(nil)

// New creates a provider seeded from OPENAI_API_KEY and
// OPENAI_API_BASE_URL when set.
func New() *Provider {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key for the provider.
func (p *Provider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API.
func (p *Provider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client.
func (p *Provider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// SendMessage implements ai.Provider.
func (p *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openai: API key is not set")
	}

	response, err := p.post(ctx, p.baseURL+chatCompletionsEndpoint, requestToWire(request))
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("openai: response contains no choices")
	}

	return responseFromWire(response), nil
}

// IsStopMessage reports whether the response should be treated as a
// terminal completion.
func (p *Provider) IsStopMessage(response *ai.ChatResponse) bool {
	if response == nil {
		return true
	}
	switch response.FinishReason {
	case "stop", "length", "content_filter":
		return true
	}
	// No content and no tool calls means there is nothing left to do.
	return response.Content == "" && len(response.ToolCalls) == 0
}

// post sends the wire request and decodes the wire response. The span in
// ctx, when present, receives request/response events.
func (p *Provider) post(ctx context.Context, url string, body wireRequest) (*wireResponse, error) {
	span := observability.SpanFromContext(ctx)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpClient := p.client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		if span != nil {
			span.RecordError(err)
		}
		return nil, fmt.Errorf("openai: send request: %w", err)
	}
	defer httpResponse.Body.Close()

	responseBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if span != nil {
		span.AddEvent("http.response.received",
			observability.Int("http.status_code", httpResponse.StatusCode),
			observability.Int("http.response_body_size", len(responseBody)),
		)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return nil, fmt.Errorf("openai: API error %s: %s", httpResponse.Status, truncate(responseBody, 512))
	}

	var response wireResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w (body: %s)", err, truncate(responseBody, 256))
	}
	return &response, nil
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
