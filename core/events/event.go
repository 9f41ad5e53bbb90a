package events

import "fundmint/core/types"

// Event is implemented by every payload an engine can emit.
type Event interface {
	EventType() string
}

// Emitter forwards engine events to downstream consumers such as indexers,
// metric bridges or the gateway.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding everything. Engines default
// to it so event emission is always optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// EmitterFunc adapts a plain function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements the Emitter interface.
func (f EmitterFunc) Emit(evt Event) { f(evt) }

// Collector buffers emitted events in order. Not safe for concurrent use;
// callers needing that wrap it behind their own lock.
type Collector struct {
	Events []*types.Event
}

// Emit implements the Emitter interface.
func (c *Collector) Emit(evt Event) {
	if c == nil || evt == nil {
		return
	}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			c.Events = append(c.Events, payload.Clone())
			return
		}
	}
	c.Events = append(c.Events, &types.Event{Type: evt.EventType()})
}

// Types returns the ordered event type names captured so far.
func (c *Collector) Types() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Events))
	for _, evt := range c.Events {
		out = append(out, evt.Type)
	}
	return out
}
