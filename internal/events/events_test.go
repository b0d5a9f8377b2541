package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()

	var got []SyncFailurePayload
	bus.Subscribe(EventSyncFailed, func(ev *Event) error {
		var payload SyncFailurePayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		got = append(got, payload)
		return nil
	})

	err := bus.PublishJSON(EventSyncFailed, SyncFailurePayload{Error: "boom", Pending: 2, Attempt: 1})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "boom", got[0].Error)
	assert.Equal(t, 2, got[0].Pending)
}

func TestPublishOnlyReachesMatchingType(t *testing.T) {
	bus := NewEventBus()

	flushed, failed := 0, 0
	bus.Subscribe(EventQueueFlushed, func(*Event) error { flushed++; return nil })
	bus.Subscribe(EventSyncFailed, func(*Event) error { failed++; return nil })

	require.NoError(t, bus.PublishJSON(EventQueueFlushed, map[string]int{"replayed": 3}))

	assert.Equal(t, 1, flushed)
	assert.Zero(t, failed)
}

func TestAllSubscribersRunDespiteHandlerError(t *testing.T) {
	bus := NewEventBus()

	second := false
	bus.Subscribe(EventActionQueued, func(*Event) error { return assert.AnError })
	bus.Subscribe(EventActionQueued, func(*Event) error { second = true; return nil })

	require.NoError(t, bus.PublishJSON(EventActionQueued, nil))
	assert.True(t, second)
}

func TestNilBusIsSilent(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventQueueFlushed, nil))
}

func TestPublishStampsCreatedAt(t *testing.T) {
	bus := NewEventBus()

	bus.Subscribe(EventStateApplied, func(ev *Event) error {
		if ev.CreatedAt.IsZero() {
			t.Error("CreatedAt not set on published event")
		}
		return nil
	})
	bus.Publish(&Event{Type: EventStateApplied})
}
