package ai

import "github.com/finflow-ai/finflow/internal/jsonschema"

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	Model          string            `json:"model,omitempty"`
	Messages       []Message         `json:"messages"`
	SystemPrompt   string            `json:"system_prompt,omitempty"`
	Tools          []ToolDescription `json:"tools,omitempty"`
	ResponseFormat *ResponseFormat   `json:"response_format,omitempty"`
}

// ToolDescription advertises one callable capability to the model.
type ToolDescription struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// Message is a single conversation entry.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content,omitempty"`

	// ToolCalls is set on assistant messages requesting tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Name is the tool that produced a tool-role message.
	Name string `json:"name,omitempty"`
}

// ResponseFormat constrains the shape of the model's reply.
type ResponseFormat struct {
	// OutputSchema, when set, requests structured output matching the schema.
	OutputSchema *jsonschema.Schema `json:"output_schema,omitempty"`
	// Strict asks the provider to enforce the schema rather than treat it
	// as a hint, where supported.
	Strict bool `json:"strict,omitempty"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is a completed provider reply.
type ChatResponse struct {
	ID           string     `json:"id"`
	Model        string     `json:"model"`
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the capability and carries its JSON arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// MessageRole identifies who authored a message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)
