// Package nodes implements the financial-research agents that run on
// the workflow engine: a coordinator that triages the query, a planner
// that drafts the research plan, a supervisor that dispatches plan
// steps, tool-backed workers (researcher, market, browser, coder), an
// analyst, and a reporter that writes the final report.
//
// Every agent follows the same contract: it asks its resolved model
// for a structured decision, tolerantly parses the reply, and returns
// a routing command. A reply that does not match the expected schema
// degrades the step instead of failing the run.
package nodes
