package observability

// Span names.
const (
	SpanWorkflowRun  = "workflow.run"
	SpanNodeInvoke   = "workflow.node.invoke"
	SpanLLMCall      = "llm.call"
	SpanToolCall     = "tool.call"
	SpanToolConnect  = "tool.connect"
	SpanReportSave   = "report.save"
	SpanStreamFollow = "stream.follow"
)

// Workflow attributes.
const (
	AttrSessionID   = "session.id"
	AttrNodeName    = "node.name"
	AttrNodeNext    = "node.next"
	AttrStep        = "workflow.step"
	AttrBudgetTier  = "budget.tier"
	AttrDegraded    = "node.degraded"
	AttrCreditsLeft = "credits.remaining"
)

// LLM attributes.
const (
	AttrLLMClass    = "llm.class"
	AttrLLMModel    = "llm.model"
	AttrLLMProvider = "llm.provider"
)

// Tool attributes.
const (
	AttrToolName   = "tool.name"
	AttrToolServer = "tool.server"
	AttrToolInput  = "tool.input"
)

// Report attributes.
const (
	AttrReportID     = "report.id"
	AttrReportStatus = "report.status"
	AttrReportDedup  = "report.deduplicated"
)

// Common attributes.
const (
	AttrError             = "error"
	AttrStatus            = "status"
	AttrStatusDescription = "status.description"
)

// Span events.
const (
	EventToolExecutionStart = "tool.execution.start"
	EventToolExecutionEnd   = "tool.execution.end"
	EventHeartbeat          = "stream.heartbeat"
	EventSchemaMismatch     = "llm.schema.mismatch"
)
