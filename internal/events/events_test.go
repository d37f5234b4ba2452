package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()

	var got []*Event
	bus.Subscribe(EventCustomerPromoted, func(e *Event) error {
		got = append(got, e)
		return nil
	})

	payload := EntryEventPayload{EntryID: 7, ShopID: 1, Name: "Ann", Status: "seated"}
	require.NoError(t, bus.PublishJSON(EventCustomerPromoted, payload))

	require.Len(t, got, 1)
	assert.Equal(t, EventCustomerPromoted, got[0].Type)
	assert.False(t, got[0].CreatedAt.IsZero())

	var decoded EntryEventPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NotPanics(t, func() {
		bus.Publish(&Event{Type: EventCustomerAdded})
	})
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventCustomerAdded, EntryEventPayload{}))
}

func TestSubscribersAreTypeScoped(t *testing.T) {
	bus := NewEventBus()

	added := 0
	bus.Subscribe(EventCustomerAdded, func(*Event) error {
		added++
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventCustomerFinished, EntryEventPayload{}))
	assert.Zero(t, added)

	require.NoError(t, bus.PublishJSON(EventCustomerAdded, EntryEventPayload{}))
	assert.Equal(t, 1, added)
}
