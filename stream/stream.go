// Package stream turns the engine's snapshot sequence into the event
// protocol consumed by clients: one typed event per agent step,
// heartbeats during quiet stretches, report persistence on the first
// final report, and a terminal completion or error event.
package stream

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/finflow-ai/finflow/core/model"
	"github.com/finflow-ai/finflow/core/state"
	"github.com/finflow-ai/finflow/providers/observability"
	"github.com/finflow-ai/finflow/report"
)

// DefaultHeartbeatInterval is emitted between real events when the
// run is quiet for this long.
const DefaultHeartbeatInterval = 20 * time.Second

// EventType discriminates stream events.
type EventType string

const (
	// EventConnectionEstablished opens every client connection. It is
	// emitted by the transport layer, not by Follow.
	EventConnectionEstablished EventType = "connection_established"

	// EventStatus reports a supervisor routing step.
	EventStatus EventType = "status"

	// EventAgentOutput carries a worker, analyst, coordinator, or
	// reporter step.
	EventAgentOutput EventType = "agent_output"

	// EventPlanStep carries the planner's plan.
	EventPlanStep EventType = "plan_step"

	// EventHeartbeat keeps the stream alive during quiet stretches.
	EventHeartbeat EventType = "heartbeat"

	// EventReportStatus reports the outcome of persisting the final
	// report.
	EventReportStatus EventType = "report_status"

	// EventStreamComplete terminates every successful stream.
	EventStreamComplete EventType = "stream_complete"

	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// Event is one frame of the streaming protocol.
type Event struct {
	Type         EventType   `json:"type"`
	SessionID    string      `json:"session_id,omitempty"`
	Agent        string      `json:"agent,omitempty"`
	Next         string      `json:"next,omitempty"`
	Content      string      `json:"content,omitempty"`
	Plan         *state.Plan `json:"plan,omitempty"`
	ReportStatus string      `json:"report_status,omitempty"`
	ReportID     string      `json:"report_id,omitempty"`
	Error        string      `json:"error,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Saver persists a final report. Implemented by report.Service.
type Saver interface {
	Save(ctx context.Context, sessionID, title, content string, meta report.Metadata) (string, error)
}

// Options configures Follow.
type Options struct {
	// HeartbeatInterval between heartbeats while no real event
	// arrives. Defaults to DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	// Reports persists the first non-empty final report. Nil disables
	// persistence; the stream then never carries a report status.
	Reports Saver

	// Observer receives spans and logs. Defaults to the no-op
	// provider.
	Observer observability.Provider

	// Now overrides the event clock in tests.
	Now func() time.Time
}

func (o Options) normalized() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.Observer == nil {
		o.Observer = observability.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Follow consumes the run's snapshot sequence and produces the event
// stream. Real events preserve the order of snapshots; heartbeats are
// interleaved without delaying them. The sequence ends with exactly
// one stream_complete event, or with one error event carrying the
// run's failure.
func Follow(ctx context.Context, run iter.Seq2[*state.State, error], opts Options) iter.Seq2[Event, error] {
	o := opts.normalized()

	return func(yield func(Event, error) bool) {
		ctx, span := o.Observer.StartSpan(ctx, observability.SpanStreamFollow)
		defer span.End()

		type item struct {
			snapshot *state.State
			err      error
		}
		items := make(chan item)
		pumpCtx, stopPump := context.WithCancel(ctx)
		defer stopPump()

		go func() {
			defer close(items)
			for snapshot, err := range run {
				select {
				case items <- item{snapshot: snapshot, err: err}:
				case <-pumpCtx.Done():
					return
				}
				if err != nil {
					return
				}
			}
		}()

		timer := time.NewTimer(o.HeartbeatInterval)
		defer timer.Stop()

		f := follower{opts: o, span: span}
		for {
			select {
			case it, ok := <-items:
				if !ok {
					yield(f.complete(), nil)
					return
				}
				if it.err != nil {
					span.RecordError(it.err)
					yield(f.failure(it.err), it.err)
					return
				}
				for _, event := range f.events(ctx, it.snapshot) {
					if !yield(event, nil) {
						return
					}
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(o.HeartbeatInterval)

			case <-timer.C:
				span.AddEvent(observability.EventHeartbeat)
				if !yield(f.heartbeat(), nil) {
					return
				}
				timer.Reset(o.HeartbeatInterval)

			case <-ctx.Done():
				err := ctx.Err()
				span.SetStatus(observability.StatusError, "canceled")
				yield(f.failure(err), err)
				return
			}
		}
	}
}

// follower holds the per-stream accumulation: the session, and the
// report outcome once the final report appeared.
type follower struct {
	opts Options
	span observability.Span

	sessionID    string
	reportStatus string
	reportID     string
	reportSaved  bool
}

// events maps one snapshot to its protocol events, saving the report
// on the first snapshot that carries one.
func (f *follower) events(ctx context.Context, snapshot *state.State) []Event {
	f.sessionID = snapshot.SessionID

	var out []Event
	if snapshot.FinalReport != "" && !f.reportSaved {
		f.saveReport(ctx, snapshot)
		out = append(out, f.stamp(Event{Type: EventReportStatus}))
	}

	event := Event{
		Agent:   snapshot.LastAgent,
		Next:    snapshot.Next,
		Content: snapshot.LastMessage().Content,
	}
	switch snapshot.LastAgent {
	case model.AgentPlanner:
		event.Type = EventPlanStep
		event.Plan = snapshot.Plan
	case model.AgentSupervisor:
		event.Type = EventStatus
	default:
		event.Type = EventAgentOutput
	}

	// Report status events precede the step event that produced the
	// report, so a consumer that stops at the step still saw it.
	return append(out, f.stamp(event))
}

func (f *follower) saveReport(ctx context.Context, snapshot *state.State) {
	f.reportSaved = true
	if f.opts.Reports == nil {
		return
	}

	id, err := f.opts.Reports.Save(ctx, snapshot.SessionID,
		reportTitle(snapshot), snapshot.FinalReport,
		report.Metadata{
			Query:      snapshot.Query,
			TickerType: snapshot.TickerType,
			Tickers:    snapshot.Tickers,
		})
	if err != nil {
		f.reportStatus = "error"
		f.span.RecordError(err)
		f.opts.Observer.Error(ctx, "report save failed",
			observability.String(observability.AttrSessionID, snapshot.SessionID),
			observability.Error(err),
		)
		return
	}
	f.reportStatus = "saved"
	f.reportID = id
}

func (f *follower) heartbeat() Event {
	return f.stamp(Event{Type: EventHeartbeat})
}

func (f *follower) complete() Event {
	return f.stamp(Event{Type: EventStreamComplete})
}

func (f *follower) failure(err error) Event {
	return f.stamp(Event{Type: EventError, Error: err.Error()})
}

// stamp fills the fields every event carries.
func (f *follower) stamp(event Event) Event {
	event.SessionID = f.sessionID
	event.ReportStatus = f.reportStatus
	event.ReportID = f.reportID
	event.Timestamp = f.opts.Now()
	return event
}

// reportTitle derives a persistable title: the plan title when
// present, else the report's first markdown heading, else the query.
func reportTitle(snapshot *state.State) string {
	if snapshot.Plan != nil && snapshot.Plan.Title != "" {
		return snapshot.Plan.Title
	}
	for _, line := range strings.Split(snapshot.FinalReport, "\n") {
		line = strings.TrimSpace(line)
		if heading, ok := strings.CutPrefix(line, "#"); ok {
			return strings.TrimSpace(strings.TrimLeft(heading, "#"))
		}
	}
	const maxTitle = 80
	if len(snapshot.Query) > maxTitle {
		return snapshot.Query[:maxTitle]
	}
	return snapshot.Query
}
