package plugin_test

import (
	"testing"

	"github.com/rymc/roomserver/internal/v1/plugin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEmitInvokesLocalSubscribers(t *testing.T) {
	bus := plugin.New(zap.NewNop())
	received := make(chan plugin.Event, 1)
	bus.Subscribe("room.created", func(ev plugin.Event) { received <- ev })

	bus.Emit("room.created", plugin.Event{Name: "room.created", Payload: "R1"})

	select {
	case ev := <-received:
		assert.Equal(t, "room.created", ev.Name)
		assert.Equal(t, "R1", ev.Payload)
	default:
		t.Fatal("expected subscriber to be invoked synchronously")
	}
}

func TestEmitOnlyInvokesMatchingTopic(t *testing.T) {
	bus := plugin.New(zap.NewNop())
	calls := 0
	bus.Subscribe("room.created", func(plugin.Event) { calls++ })
	bus.Subscribe("room.destroyed", func(plugin.Event) { calls += 100 })

	bus.Emit("room.created", plugin.Event{Name: "room.created"})

	assert.Equal(t, 1, calls)
}

func TestEmitWithNoRedisDoesNotPanic(t *testing.T) {
	bus := plugin.New(zap.NewNop())
	assert.NotPanics(t, func() {
		bus.Emit("anything", plugin.Event{Name: "anything"})
	})
}
