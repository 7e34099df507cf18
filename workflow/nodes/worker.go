package nodes

import (
	"context"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/parse"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/internal/jsonschema"
	"github.com/finflow-ai/finflow/providers/ai"
	"github.com/finflow-ai/finflow/providers/observability"
	"github.com/finflow-ai/finflow/providers/toolbox"
	"github.com/finflow-ai/finflow/workflow/graph"
)

type workerResult struct {
	ResultSummary string `json:"result_summary" jsonschema:"required,one paragraph summary of the findings"`
	Output        string `json:"output" jsonschema:"required,the full findings"`
}

// worker is the shared implementation of the tool-backed agents. Each
// invocation connects to the agent's MCP servers, runs a bounded
// tool-call loop, spends one credit, and reports back to the
// supervisor.
type worker struct {
	config Config
	agent  string
	prompt string

	// transformToolOutput post-processes tool results before they are
	// fed back to the model. Nil means pass through.
	transformToolOutput func(string) string
}

// NewResearcher returns the web/news research worker.
func NewResearcher(config Config) graph.Node {
	return &worker{config: config.normalized(), agent: model.AgentResearcher, prompt: researcherPrompt}
}

// NewMarket returns the market-data worker.
func NewMarket(config Config) graph.Node {
	return &worker{config: config.normalized(), agent: model.AgentMarket, prompt: marketPrompt}
}

// NewBrowser returns the web-browsing worker. Tool output that looks
// like an HTML document is converted to markdown before the model
// sees it.
func NewBrowser(config Config) graph.Node {
	return &worker{
		config:              config.normalized(),
		agent:               model.AgentBrowser,
		prompt:              browserPrompt,
		transformToolOutput: htmlToMarkdown,
	}
}

// NewCoder returns the computation worker.
func NewCoder(config Config) graph.Node {
	return &worker{config: config.normalized(), agent: model.AgentCoder, prompt: coderPrompt}
}

func (n *worker) Invoke(ctx context.Context, st *state.State) (*graph.Command, error) {
	result, raw, err := n.execute(ctx, st)
	if err != nil {
		return nil, err
	}

	content := degradedContent(raw)
	if result != nil {
		content = result.ResultSummary + "\n\n" + result.Output
	}

	return &graph.Command{
		Goto: model.AgentSupervisor,
		Apply: func(st *state.State) {
			st.Credits.Spend(n.agent)
			st.AppendMessage("assistant", n.agent, content)
		},
	}, nil
}

// execute runs the tool-call loop. It returns the parsed result, or a
// nil result with the raw final reply when parsing failed.
func (n *worker) execute(ctx context.Context, st *state.State) (*workerResult, string, error) {
	class, ok := st.AgentLLMMap[n.agent]
	if !ok {
		class = model.ClassBasic
	}
	config, err := model.Resolve(class, st.LLMOverrides)
	if err != nil {
		return nil, "", fmt.Errorf("nodes: resolve model for %s: %w", n.agent, err)
	}
	provider, err := n.config.Provider(config)
	if err != nil {
		return nil, "", fmt.Errorf("nodes: provider for %s: %w", n.agent, err)
	}

	var tools []ai.ToolDescription
	tb := toolbox.New(n.config.ToolServers[n.agent], toolbox.WithObservability(n.config.Observer))
	if len(n.config.ToolServers[n.agent]) > 0 {
		if err := tb.Connect(ctx); err != nil {
			return nil, "", fmt.Errorf("nodes: %s toolbox: %w", n.agent, err)
		}
		defer tb.Close()
		tools = tb.Tools()
	}

	prompt := n.prompt + workerOutputInstruction + researchContext(st) + taskContext(st)
	messages := wireMessages(st.Messages)

	for iteration := 0; iteration < n.config.MaxToolIterations; iteration++ {
		response, err := provider.SendMessage(ctx, ai.ChatRequest{
			Model:        config.Model,
			SystemPrompt: prompt,
			Messages:     messages,
			Tools:        tools,
			ResponseFormat: &ai.ResponseFormat{
				OutputSchema: jsonschema.Generate[workerResult](),
			},
		})
		if err != nil {
			return nil, "", fmt.Errorf("nodes: %s model call: %w", n.agent, err)
		}

		if len(response.ToolCalls) == 0 {
			return n.finish(ctx, st, response.Content)
		}

		messages = append(messages, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})
		for _, call := range response.ToolCalls {
			output, err := tb.Call(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				// The model sees the failure and can retry or adapt;
				// only context cancellation aborts the loop.
				if ctx.Err() != nil {
					return nil, "", ctx.Err()
				}
				output = "tool error: " + err.Error()
			} else if n.transformToolOutput != nil {
				output = n.transformToolOutput(output)
			}
			messages = append(messages, ai.Message{
				Role:       ai.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    output,
			})
		}
	}

	// Iteration budget exhausted; force a final answer without tools.
	response, err := provider.SendMessage(ctx, ai.ChatRequest{
		Model:        config.Model,
		SystemPrompt: prompt + "\n\nYour tool budget is exhausted. Answer now from what you have.",
		Messages:     messages,
		ResponseFormat: &ai.ResponseFormat{
			OutputSchema: jsonschema.Generate[workerResult](),
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("nodes: %s model call: %w", n.agent, err)
	}
	return n.finish(ctx, st, response.Content)
}

func (n *worker) finish(ctx context.Context, st *state.State, content string) (*workerResult, string, error) {
	result, err := parse.StringAs[workerResult](content)
	if err != nil {
		n.config.Observer.Warn(ctx, "worker reply did not match schema",
			observability.String(observability.AttrSessionID, st.SessionID),
			observability.String(observability.AttrNodeName, n.agent),
			observability.Error(err),
		)
		return nil, content, nil
	}
	return &result, content, nil
}

// htmlToMarkdown converts HTML tool output to markdown. Output that
// does not look like an HTML document passes through unchanged.
func htmlToMarkdown(output string) string {
	trimmed := strings.TrimSpace(output)
	lowered := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowered, "<!doctype html") && !strings.HasPrefix(lowered, "<html") {
		return output
	}
	markdown, err := htmltomarkdown.ConvertString(trimmed)
	if err != nil {
		return output
	}
	return markdown
}
