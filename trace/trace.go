// Package trace is the core's change-notification and diagnostics
// callback hook (§9: "an explicit change-notification callback
// accepting batched TX reports"), generalized to carry any execution
// event. It is modeled directly on the teacher's
// datalog/annotations package: hierarchical event names, a plain
// Handler func(Event), and a Collector that records events in a
// mutex-guarded slice.
package trace

import (
	"sync"
	"time"
)

// Event names, hierarchically namespaced the way the teacher names
// datalog/annotations events (component/verb.detail).
const (
	StoreTxCommitted  = "store/tx.committed"
	StoreBasisAdvance = "store/basis.advanced"
	StoreBatchBegin   = "store/batch.begin"
	StoreBatchEnd     = "store/batch.end"

	QueryMatchBegin    = "query/match.begin"
	QueryMatchComplete = "query/match.completed"
	QueryAggregated    = "query/aggregated"

	BindingsGroupBy = "bindings/group.by"
)

// Event is a single notification delivered to a Handler.
type Event struct {
	Name    string
	At      time.Time
	Latency time.Duration
	Data    map[string]any
}

// Handler processes Events as they occur. Nil handlers are valid and
// mean "no one is listening".
type Handler func(Event)

// Collector accumulates events for callers who want to inspect the
// trace after the fact rather than react to it live.
type Collector struct {
	mu      sync.Mutex
	handler Handler
	events  []Event
}

func NewCollector(handler Handler) *Collector {
	return &Collector{handler: handler, events: make([]Event, 0, 32)}
}

func (c *Collector) Handler() Handler {
	if c == nil {
		return nil
	}
	return c.handler
}

// Add records an event and forwards it to the handler, if any.
func (c *Collector) Add(event Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	if c.handler != nil {
		c.handler(event)
	}
}

// Emit is a convenience wrapper that fills in At for the caller.
func (c *Collector) Emit(name string, data map[string]any) {
	if c == nil {
		return
	}
	c.Add(Event{Name: name, At: time.Now(), Data: data})
}

// Events returns a copy of everything recorded so far.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
