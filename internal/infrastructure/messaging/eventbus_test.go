package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

func syncBusConfig() InMemoryEventBusConfig {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	return cfg
}

func TestEventBus_DeliversToSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var received []shared.Event
	err := bus.Subscribe(shared.EventPlanCreated, func(event shared.Event) error {
		received = append(received, event)
		return nil
	})
	require.NoError(t, err)

	event := shared.NewPlanCreatedEvent("p1", "u1", true)
	require.NoError(t, bus.Publish(event))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventPlanCreated, received[0].EventType())
}

func TestEventBus_TypeFilteredDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var planEvents, allEvents int
	require.NoError(t, bus.Subscribe(shared.EventPlanCreated, func(shared.Event) error {
		planEvents++
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		allEvents++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewPlanCreatedEvent("p1", "u1", true)))
	require.NoError(t, bus.Publish(shared.NewBadgeAwardedEvent("b1", "First Step", "u1")))

	assert.Equal(t, 1, planEvents)
	assert.Equal(t, 2, allEvents)
}

func TestEventBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventPlanCreated, func(shared.Event) error {
		return errors.New("evaluation blew up")
	}))

	err := bus.Publish(shared.NewPlanCreatedEvent("p1", "u1", true))
	assert.NoError(t, err, "handler failures stay on the handler's side")

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalHandlerExecs)
	assert.Zero(t, snap.HandlerSuccessRate)
}

func TestEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var count atomic.Int64
	var wg sync.WaitGroup
	wg.Add(5)
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		count.Add(1)
		wg.Done()
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("u1", i+1)))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not run")
	}

	require.NoError(t, bus.Close())
	assert.Equal(t, int64(5), count.Load())
}

func TestEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewPlanCreatedEvent("p1", "u1", true))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventPlanCreated, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestEventBus_RejectsNilArguments(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventPlanCreated, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}
