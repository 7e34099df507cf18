package nodes

import (
	"context"
	"fmt"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/parse"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/internal/jsonschema"
	"github.com/finflow-ai/finflow/providers/ai"
	"github.com/finflow-ai/finflow/providers/observability"
	"github.com/finflow-ai/finflow/providers/toolbox"
)

// defaultMaxToolIterations bounds the tool-call loop of a single
// worker invocation.
const defaultMaxToolIterations = 8

// Config carries the shared dependencies of every node.
type Config struct {
	// Provider builds an ai.Provider from a resolved model
	// configuration. Defaults to model.NewProvider.
	Provider func(model.Config) (ai.Provider, error)

	// Observer receives spans and logs. Defaults to the no-op
	// provider.
	Observer observability.Provider

	// ToolServers maps a worker agent name to the MCP servers it may
	// use. Workers with no entry run without tools.
	ToolServers map[string][]toolbox.ServerConfig

	// MaxToolIterations bounds the tool-call loop per worker
	// invocation. Defaults to 8.
	MaxToolIterations int
}

func (c Config) normalized() Config {
	if c.Provider == nil {
		c.Provider = model.NewProvider
	}
	if c.Observer == nil {
		c.Observer = observability.Nop()
	}
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = defaultMaxToolIterations
	}
	return c
}

// Outcome is the result of a structured model call. Either Data is set
// and the reply matched the schema, or Degraded is true and Raw holds
// the reply as received. A degraded outcome is not an error; the
// workflow continues on the node's default route.
type Outcome[T any] struct {
	Data     *T
	Degraded bool
	Raw      string
}

// chat resolves the model class assigned to agent and sends one
// request. Resolution and transport failures are hard errors; they
// mean misconfiguration, not a bad model reply.
func chat(ctx context.Context, c Config, st *state.State, agent string, request ai.ChatRequest) (*ai.ChatResponse, error) {
	class, ok := st.AgentLLMMap[agent]
	if !ok {
		class = model.ClassBasic
	}
	config, err := model.Resolve(class, st.LLMOverrides)
	if err != nil {
		return nil, fmt.Errorf("nodes: resolve model for %s: %w", agent, err)
	}
	provider, err := c.Provider(config)
	if err != nil {
		return nil, fmt.Errorf("nodes: provider for %s: %w", agent, err)
	}
	request.Model = config.Model

	ctx, span := c.Observer.StartSpan(ctx, observability.SpanLLMCall,
		observability.String(observability.AttrNodeName, agent),
		observability.String(observability.AttrLLMClass, string(class)),
		observability.String(observability.AttrLLMModel, config.Model),
		observability.String(observability.AttrLLMProvider, config.Provider),
	)
	defer span.End()

	response, err := provider.SendMessage(ctx, request)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("nodes: %s model call: %w", agent, err)
	}
	return response, nil
}

// invokeStructured sends the conversation with a response schema for T
// and parses the reply. A reply that fails to parse degrades the
// outcome instead of erroring.
func invokeStructured[T any](ctx context.Context, c Config, st *state.State, agent, systemPrompt string) (Outcome[T], error) {
	request := ai.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     wireMessages(st.Messages),
		ResponseFormat: &ai.ResponseFormat{
			OutputSchema: jsonschema.Generate[T](),
			Strict:       true,
		},
	}

	response, err := chat(ctx, c, st, agent, request)
	if err != nil {
		return Outcome[T]{}, err
	}

	parsed, err := parse.StringAs[T](response.Content)
	if err != nil {
		c.Observer.Warn(ctx, "model reply did not match schema",
			observability.String(observability.AttrSessionID, st.SessionID),
			observability.String(observability.AttrNodeName, agent),
			observability.Error(err),
		)
		return Outcome[T]{Degraded: true, Raw: response.Content}, nil
	}
	return Outcome[T]{Data: &parsed, Raw: response.Content}, nil
}

// invokeText sends the conversation and returns the plain text reply.
func invokeText(ctx context.Context, c Config, st *state.State, agent, systemPrompt string) (string, error) {
	response, err := chat(ctx, c, st, agent, ai.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     wireMessages(st.Messages),
	})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// wireMessages converts the shared conversation history to provider
// messages. Agent-authored messages keep their author in Name.
func wireMessages(messages []state.Message) []ai.Message {
	wire := make([]ai.Message, 0, len(messages))
	for _, message := range messages {
		role := ai.RoleAssistant
		switch message.Role {
		case "user":
			role = ai.RoleUser
		case "system":
			role = ai.RoleSystem
		}
		wire = append(wire, ai.Message{
			Role:    role,
			Name:    message.Name,
			Content: message.Content,
		})
	}
	return wire
}

// degradedContent is what a degraded step records in the shared
// history, keeping the raw reply available downstream.
func degradedContent(raw string) string {
	return "error: response did not match the expected format\n\n" + raw
}
