package server

import (
	"context"
	"sync"

	"github.com/finflow-ai/finflow/stream"
)

// runRecord accumulates a run's events so any number of stream
// connections can replay them from the start and then follow live.
type runRecord struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []stream.Event
	done   bool
}

func newRunRecord() *runRecord {
	r := &runRecord{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *runRecord) append(event stream.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.cond.Broadcast()
}

func (r *runRecord) finish() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

// next blocks until event index exists, the run finished, or ctx is
// done. The second return reports whether an event was produced.
func (r *runRecord) next(ctx context.Context, index int) (stream.Event, bool) {
	stop := context.AfterFunc(ctx, r.cond.Broadcast)
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if index < len(r.events) {
			return r.events[index], true
		}
		if r.done || ctx.Err() != nil {
			return stream.Event{}, false
		}
		r.cond.Wait()
	}
}
