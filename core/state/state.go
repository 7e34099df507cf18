// Package state defines the shared mutable record threaded through every
// node invocation of one workflow run: the conversation transcript, the
// routing cursor, the research plan, the final report, and the per-agent
// credit ledger.
//
// A State is exclusively owned by the run that created it. The engine
// mutates its single working copy and hands out deep clones as snapshots,
// so consumers never observe a partially applied update.
package state

import "github.com/finflow-ai/finflow/core/model"

// Message is one entry in the append-only conversation transcript.
// Name identifies the node that authored the message; it is empty for the
// initial user query.
type Message struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// PlanStep is a single unit of work in a research plan, assigned to one
// named agent.
type PlanStep struct {
	Agent       string `json:"agent"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Plan is the planner's artifact: a titled, ordered list of steps for the
// supervisor to dispatch.
type Plan struct {
	Title   string     `json:"title"`
	Thought string     `json:"thought"`
	Steps   []PlanStep `json:"steps"`
}

// Credits is the per-agent resource ledger. Counters are advisory by
// default: they are decremented on every invocation of the matching agent
// but do not, on their own, prevent further routing to that agent.
// Counters never go negative.
type Credits struct {
	Researcher int `json:"researcher"`
	Coder      int `json:"coder"`
	Browser    int `json:"browser"`
	Market     int `json:"market"`
}

// Spend decrements the counter for the named agent, floored at zero.
// Agents without a counter are a no-op.
func (c *Credits) Spend(agent string) {
	if counter, ok := c.counter(agent); ok && *counter > 0 {
		*counter--
	}
}

// Remaining reports the counter for the named agent. The second return is
// false for agents that carry no credit counter.
func (c *Credits) Remaining(agent string) (int, bool) {
	counter, ok := c.counter(agent)
	if !ok {
		return 0, false
	}
	return *counter, true
}

func (c *Credits) counter(agent string) (*int, bool) {
	switch agent {
	case "researcher":
		return &c.Researcher, true
	case "coder":
		return &c.Coder, true
	case "browser":
		return &c.Browser, true
	case "market":
		return &c.Market, true
	}
	return nil, false
}

// State is the single mutable record for one workflow run.
//
// Invariants maintained by the engine:
//   - Messages is append-only; snapshots of later steps always contain
//     earlier snapshots' messages as a prefix.
//   - Next always names a registered node or the engine's terminal marker.
//   - Credit counters never go negative.
type State struct {
	// SessionID correlates the run with its client stream and persisted report.
	SessionID string `json:"session_id"`

	// Query is the original user request that started the run.
	Query string `json:"query"`

	// Messages is the ordered, append-only conversation transcript.
	Messages []Message `json:"messages"`

	// Next names the node the engine invokes next, or the terminal marker.
	Next string `json:"next"`

	// LastAgent names the node that produced the most recent update.
	LastAgent string `json:"last_agent,omitempty"`

	// Plan is set by the planner and consumed by the supervisor and reporter.
	Plan *Plan `json:"plan,omitempty"`

	// FinalReport stays empty until the reporter runs.
	FinalReport string `json:"final_report,omitempty"`

	// Credits is the per-agent resource ledger for this run.
	Credits Credits `json:"credits"`

	// AgentLLMMap assigns each node its LLM class for the selected budget
	// tier. Seeded at run start, read-only afterwards.
	AgentLLMMap map[string]model.Class `json:"agent_llm_map,omitempty"`

	// LLMOverrides optionally pins an LLM class to a concrete model config,
	// taking precedence over tier and environment defaults. Read-only.
	LLMOverrides map[model.Class]model.Config `json:"llm_configs,omitempty"`

	// Contextual fields produced by the coordinator.
	Tickers    []string `json:"tickers,omitempty"`
	TickerType string   `json:"ticker_type,omitempty"`
	TimeRange  string   `json:"time_range,omitempty"`
	Locale     string   `json:"locale,omitempty"`

	// Hand-off fields produced by the supervisor for the next worker.
	Task        string `json:"task,omitempty"`
	Focus       string `json:"focus,omitempty"`
	TaskContext string `json:"task_context,omitempty"`
}

// New creates the state for a fresh run. The query becomes the first
// transcript message.
func New(sessionID, query string, credits Credits, tier model.Tier, overrides map[model.Class]model.Config) *State {
	return &State{
		SessionID:    sessionID,
		Query:        query,
		Messages:     []Message{{Role: "user", Content: query}},
		Credits:      credits,
		AgentLLMMap:  model.AgentClasses(tier),
		LLMOverrides: overrides,
	}
}

// AppendMessage appends one transcript entry authored by the named node.
func (s *State) AppendMessage(role, name, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Name: name, Content: content})
}

// LastMessage returns the most recent transcript entry, or a zero Message
// when the transcript is empty.
func (s *State) LastMessage() Message {
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

// Clone returns a deep copy of the state. Snapshots handed to stream
// consumers are clones, so later engine steps cannot mutate them.
func (s *State) Clone() *State {
	clone := *s

	clone.Messages = make([]Message, len(s.Messages))
	copy(clone.Messages, s.Messages)

	if s.Plan != nil {
		plan := *s.Plan
		plan.Steps = make([]PlanStep, len(s.Plan.Steps))
		copy(plan.Steps, s.Plan.Steps)
		clone.Plan = &plan
	}

	if s.Tickers != nil {
		clone.Tickers = make([]string, len(s.Tickers))
		copy(clone.Tickers, s.Tickers)
	}

	if s.AgentLLMMap != nil {
		clone.AgentLLMMap = make(map[string]model.Class, len(s.AgentLLMMap))
		for name, class := range s.AgentLLMMap {
			clone.AgentLLMMap[name] = class
		}
	}

	if s.LLMOverrides != nil {
		clone.LLMOverrides = make(map[model.Class]model.Config, len(s.LLMOverrides))
		for class, config := range s.LLMOverrides {
			clone.LLMOverrides[class] = config
		}
	}

	return &clone
}
