package telemetry_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtier/memtier/internal/telemetry"
	"github.com/memtier/memtier/pkg/types"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := telemetry.NewHub()
	go hub.Run()
	defer hub.Stop()

	received := make(chan []byte, 1)
	mock := &telemetry.MockClient{SendChan: received}
	hub.Register(mock)

	// Give the hub time to register the client.
	time.Sleep(10 * time.Millisecond)

	hub.Publish(types.ConsolidationEvent{
		ID:               "cycle-1",
		Trigger:          types.TriggerManual,
		ItemsProcessed:   3,
		EpisodesInserted: 1,
	})

	select {
	case msg := <-received:
		var event types.ConsolidationEvent
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, "cycle-1", event.ID)
		assert.Equal(t, types.TriggerManual, event.Trigger)
		assert.Equal(t, 3, event.ItemsProcessed)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast event")
	}
}

func TestHub_SlowSubscriberIsDisconnected(t *testing.T) {
	hub := telemetry.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Zero-capacity channel with no reader: the first broadcast cannot be
	// delivered and the subscriber must be dropped, not block the hub.
	mock := &telemetry.MockClient{SendChan: make(chan []byte)}
	hub.Register(mock)
	time.Sleep(10 * time.Millisecond)

	hub.Publish(types.ConsolidationEvent{ID: "cycle-1"})
	time.Sleep(10 * time.Millisecond)

	// The channel is closed on disconnect.
	select {
	case _, open := <-mock.SendChan:
		assert.False(t, open, "expected send channel closed for slow subscriber")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for disconnect")
	}
}

func TestHub_PublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := telemetry.NewHub()
	go hub.Run()
	defer hub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(types.ConsolidationEvent{ID: "cycle"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish must never block the caller")
	}
}
