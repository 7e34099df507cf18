package openai

import (
	"github.com/finflow-ai/finflow/internal/jsonschema"
	"github.com/finflow-ai/finflow/providers/ai"
)

// wireRequest is the /v1/chat/completions request format.
type wireRequest struct {
	Model          string              `json:"model"`
	Messages       []wireMessage       `json:"messages"`
	Tools          []wireTool          `json:"tools,omitempty"`
	ToolChoice     string              `json:"tool_choice,omitempty"`
	ResponseFormat *wireResponseFormat `json:"response_format,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *wireJSONSchema `json:"json_schema,omitempty"`
}

type wireJSONSchema struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
	Strict bool               `json:"strict,omitempty"`
}

// wireResponse is the /v1/chat/completions response format.
type wireResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage,omitempty"`
}

type wireChoice struct {
	Index        int               `json:"index"`
	Message      wireChoiceMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type wireChoiceMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// requestToWire converts an ai.ChatRequest into the OpenAI wire format.
func requestToWire(request ai.ChatRequest) wireRequest {
	wire := wireRequest{Model: request.Model}

	if request.SystemPrompt != "" {
		wire.Messages = append(wire.Messages, wireMessage{
			Role:    string(ai.RoleSystem),
			Content: request.SystemPrompt,
		})
	}

	for _, message := range request.Messages {
		wireMsg := wireMessage{
			Role:       string(message.Role),
			Content:    message.Content,
			Name:       message.Name,
			ToolCallID: message.ToolCallID,
		}
		for _, call := range message.ToolCalls {
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, toolCallToWire(call))
		}
		wire.Messages = append(wire.Messages, wireMsg)
	}

	for _, tool := range request.Tools {
		wire.Tools = append(wire.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	if format := request.ResponseFormat; format != nil && format.OutputSchema != nil {
		wire.ResponseFormat = &wireResponseFormat{
			Type: "json_schema",
			JSONSchema: &wireJSONSchema{
				Name:   "response",
				Schema: format.OutputSchema,
				Strict: format.Strict,
			},
		}
	}

	return wire
}

func toolCallToWire(call ai.ToolCall) wireToolCall {
	wire := wireToolCall{ID: call.ID, Type: call.Type}
	if wire.Type == "" {
		wire.Type = "function"
	}
	wire.Function.Name = call.Function.Name
	wire.Function.Arguments = call.Function.Arguments
	return wire
}

// responseFromWire converts an OpenAI wire response into the generic form.
func responseFromWire(wire *wireResponse) *ai.ChatResponse {
	choice := wire.Choices[0]

	response := &ai.ChatResponse{
		ID:           wire.ID,
		Model:        wire.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}

	for _, call := range choice.Message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, ai.ToolCall{
			ID:   call.ID,
			Type: call.Type,
			Function: ai.ToolCallFunction{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}

	if wire.Usage != nil {
		response.Usage = &ai.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}
	}

	return response
}
