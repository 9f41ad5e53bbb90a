package types

// Event is the canonical structured payload emitted whenever an engine
// transitions state. Attributes carry stringly-typed key/value pairs so the
// payload can be indexed or forwarded without schema knowledge.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Clone returns a copy of the event with a detached attribute map.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := &Event{Type: e.Type, Attributes: make(map[string]string, len(e.Attributes))}
	for k, v := range e.Attributes {
		clone.Attributes[k] = v
	}
	return clone
}
