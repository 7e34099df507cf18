package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/finflow-ai/finflow/internal/jsonschema"
	"github.com/finflow-ai/finflow/providers/ai"
	"github.com/finflow-ai/finflow/providers/observability"
)

var (
	// ErrUnknownTool is returned by Call when no connected server
	// exposes the named tool.
	ErrUnknownTool = errors.New("toolbox: unknown tool")

	// ErrNotConnected is returned when the toolbox is used before
	// Connect or after Close.
	ErrNotConnected = errors.New("toolbox: not connected")
)

// ServerConfig describes one MCP server the toolbox should connect to.
// Exactly one of Command, URL, or Transport must be set.
type ServerConfig struct {
	// Name identifies the server in logs and error messages.
	Name string

	// Command and Args launch a stdio server as a subprocess.
	Command string
	Args    []string

	// URL points at a streamable HTTP server.
	URL string

	// Transport overrides Command/URL with a pre-built transport.
	// Used by tests with in-memory transports.
	Transport sdkmcp.Transport
}

// Option configures a Toolbox.
type Option func(*Toolbox)

// WithObservability sets the observability provider used for spans and
// logs. Defaults to the no-op provider.
func WithObservability(obs observability.Provider) Option {
	return func(t *Toolbox) {
		t.obs = obs
	}
}

// Toolbox aggregates tools from multiple MCP servers. Connect before
// use, Close when done. Safe for concurrent Call after Connect.
type Toolbox struct {
	configs []ServerConfig
	obs     observability.Provider

	mu       sync.Mutex
	sessions []*sdkmcp.ClientSession
	tools    []ai.ToolDescription
	routing  map[string]*sdkmcp.ClientSession
}

// New creates a toolbox over the given server configurations. No
// connections are made until Connect.
func New(configs []ServerConfig, opts ...Option) *Toolbox {
	t := &Toolbox{
		configs: configs,
		obs:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect establishes sessions to every configured server in parallel
// and builds the tool routing table. Any single failure aborts the
// whole connect and closes the sessions that did come up.
func (t *Toolbox) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.routing != nil {
		return nil
	}

	type connected struct {
		session *sdkmcp.ClientSession
		tools   []ai.ToolDescription
	}
	results := make([]connected, len(t.configs))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, config := range t.configs {
		group.Go(func() error {
			session, tools, err := t.connectOne(groupCtx, config)
			if err != nil {
				return fmt.Errorf("toolbox: connect %q: %w", config.Name, err)
			}
			results[i] = connected{session: session, tools: tools}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		for _, r := range results {
			if r.session != nil {
				r.session.Close()
			}
		}
		return err
	}

	t.routing = make(map[string]*sdkmcp.ClientSession)
	for _, r := range results {
		t.sessions = append(t.sessions, r.session)
		for _, tool := range r.tools {
			if _, dup := t.routing[tool.Name]; dup {
				continue
			}
			t.routing[tool.Name] = r.session
			t.tools = append(t.tools, tool)
		}
	}
	return nil
}

func (t *Toolbox) connectOne(ctx context.Context, config ServerConfig) (*sdkmcp.ClientSession, []ai.ToolDescription, error) {
	ctx, span := t.obs.StartSpan(ctx, observability.SpanToolConnect,
		observability.String(observability.AttrToolServer, config.Name),
	)
	defer span.End()

	transport := config.Transport
	switch {
	case transport != nil:
	case config.Command != "":
		transport = &sdkmcp.CommandTransport{Command: exec.Command(config.Command, config.Args...)}
	case config.URL != "":
		transport = &sdkmcp.StreamableClientTransport{Endpoint: config.URL}
	default:
		return nil, nil, errors.New("no command, URL, or transport configured")
	}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "finflow", Version: "dev"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	listed, err := session.ListTools(ctx, nil)
	if err != nil {
		session.Close()
		span.RecordError(err)
		return nil, nil, fmt.Errorf("list tools: %w", err)
	}

	tools := make([]ai.ToolDescription, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		description := ai.ToolDescription{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if tool.InputSchema != nil {
			schema, err := schemaFromMCP(tool.InputSchema)
			if err != nil {
				session.Close()
				return nil, nil, fmt.Errorf("tool %q schema: %w", tool.Name, err)
			}
			description.Parameters = schema
		}
		tools = append(tools, description)
	}

	t.obs.Info(ctx, "mcp server connected",
		observability.String(observability.AttrToolServer, config.Name),
		observability.Int("tool.count", len(tools)),
	)
	return session, tools, nil
}

// Tools returns the descriptions of every tool across all connected
// servers, in a form a model provider accepts.
func (t *Toolbox) Tools() []ai.ToolDescription {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ai.ToolDescription, len(t.tools))
	copy(out, t.tools)
	return out
}

// Call dispatches a tool call to the owning server. arguments is the
// raw JSON argument string as produced by the model. Tool-reported
// errors come back as a non-nil error carrying the tool's message;
// transport failures are wrapped the same way.
func (t *Toolbox) Call(ctx context.Context, name, arguments string) (string, error) {
	t.mu.Lock()
	session := (*sdkmcp.ClientSession)(nil)
	if t.routing != nil {
		session = t.routing[name]
	} else {
		t.mu.Unlock()
		return "", ErrNotConnected
	}
	t.mu.Unlock()

	if session == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	ctx, span := t.obs.StartSpan(ctx, observability.SpanToolCall,
		observability.String(observability.AttrToolName, name),
	)
	defer span.End()

	var args map[string]any
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("toolbox: arguments for %q are not valid JSON: %w", name, err)
		}
	}

	span.AddEvent(observability.EventToolExecutionStart)
	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("toolbox: call %q: %w", name, err)
	}
	span.AddEvent(observability.EventToolExecutionEnd)

	text := textContent(result)
	if result.IsError {
		err := fmt.Errorf("toolbox: tool %q failed: %s", name, text)
		span.RecordError(err)
		return text, err
	}
	return text, nil
}

// Close closes every session. The toolbox cannot be reused afterwards.
func (t *Toolbox) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, session := range t.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.sessions = nil
	t.tools = nil
	t.routing = nil
	return errors.Join(errs...)
}

func textContent(result *sdkmcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaFromMCP converts the SDK's schema representation into the one
// the model providers accept, going through JSON since the two types
// share the JSON Schema wire form.
func schemaFromMCP(in any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}
