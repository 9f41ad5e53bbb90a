package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fundmint/core/types"
)

type payloadEvent struct {
	evt *types.Event
}

func (e payloadEvent) EventType() string   { return e.evt.Type }
func (e payloadEvent) Event() *types.Event { return e.evt }

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare.event" }

func TestCollectorBuffersInOrder(t *testing.T) {
	collector := &Collector{}
	collector.Emit(payloadEvent{evt: &types.Event{Type: "a", Attributes: map[string]string{"k": "v"}}})
	collector.Emit(bareEvent{})
	collector.Emit(payloadEvent{evt: &types.Event{Type: "b"}})

	require.Equal(t, []string{"a", "bare.event", "b"}, collector.Types())
	require.Equal(t, "v", collector.Events[0].Attributes["k"])
}

func TestCollectorClonesPayload(t *testing.T) {
	collector := &Collector{}
	payload := &types.Event{Type: "a", Attributes: map[string]string{"k": "v"}}
	collector.Emit(payloadEvent{evt: payload})

	payload.Attributes["k"] = "mutated"
	require.Equal(t, "v", collector.Events[0].Attributes["k"])
}

func TestEmitterFunc(t *testing.T) {
	var seen []string
	emitter := EmitterFunc(func(evt Event) { seen = append(seen, evt.EventType()) })
	emitter.Emit(bareEvent{})
	require.Equal(t, []string{"bare.event"}, seen)
}

func TestNoopEmitter(t *testing.T) {
	NoopEmitter{}.Emit(bareEvent{}) // must not panic
}
