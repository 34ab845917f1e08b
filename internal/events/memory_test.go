// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventBus_Publish(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	event := Event{
		Type:    "domain.service.started",
		Payload: map[string]interface{}{"service": "api"},
	}

	err := bus.Publish(context.Background(), event)
	assert.NoError(t, err)
}

func TestMemoryEventBus_Publish_AssignsID(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var receivedEvent Event
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		receivedEvent = e
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), Event{Type: "domain.service.started"})
	require.NoError(t, err)

	assert.NotEmpty(t, receivedEvent.ID)
	assert.False(t, receivedEvent.Timestamp.IsZero())
}

func TestMemoryEventBus_Subscribe(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	received := make(chan Event, 1)

	_, err := bus.Subscribe("domain.service.started", func(ctx context.Context, e Event) error {
		received <- e
		return nil
	})
	require.NoError(t, err)

	event := Event{Type: "domain.service.started", Payload: map[string]interface{}{"service": "api"}}
	err = bus.Publish(context.Background(), event)
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, "domain.service.started", e.Type)
		assert.Equal(t, "api", e.Payload["service"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestMemoryEventBus_Subscribe_PatternMatching(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count int32

	_, err := bus.Subscribe("domain.service.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)

	for _, e := range []Event{
		{Type: "domain.service.started"},
		{Type: "domain.service.stopped"},
		{Type: "domain.service.crashed"},
		{Type: "domain.session.created"}, // Should not match
	} {
		bus.Publish(context.Background(), e)
	}

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&count))
}

func TestMemoryEventBus_Subscribe_MultipleHandlers(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count1, count2 int32

	_, err := bus.Subscribe("domain.service.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count1, 1)
		return nil
	})
	require.NoError(t, err)

	_, err = bus.Subscribe("domain.service.started", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count2, 1)
		return nil
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), Event{Type: "domain.service.started"})
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&count1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&count2))
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count int32

	subID, err := bus.Subscribe("domain.service.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), Event{Type: "domain.service.started"})
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))

	err = bus.Unsubscribe(subID)
	require.NoError(t, err)

	bus.Publish(context.Background(), Event{Type: "domain.service.stopped"})
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestMemoryEventBus_Unsubscribe_InvalidID(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	err := bus.Unsubscribe("invalid-id")
	assert.Error(t, err)
}

func TestMemoryEventBus_SubscribeAsync(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	received := make(chan Event, 10)

	_, err := bus.SubscribeAsync("domain.service.*", func(ctx context.Context, e Event) error {
		received <- e
		return nil
	}, 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		bus.Publish(context.Background(), Event{Type: "domain.service.started"})
	}

	for i := 0; i < 5; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestMemoryEventBus_SubscribeAsync_BufferFull(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var received int32
	blockChan := make(chan struct{})

	_, err := bus.SubscribeAsync("domain.service.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&received, 1)
		<-blockChan
		return nil
	}, 2)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), Event{Type: "domain.service.started"})
	}

	close(blockChan)
	time.Sleep(100 * time.Millisecond)

	count := atomic.LoadInt32(&received)
	assert.Greater(t, count, int32(0))
}

func TestMemoryEventBus_IdempotencyDedup(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
		HistoryMaxAge:    time.Hour,
	})
	defer bus.Close()

	var count int32
	_, err := bus.Subscribe("domain.notification.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)

	// An outbox retry republishing the same envelope carries the same
	// idempotency key; the second publish must not re-notify subscribers
	// or add a second history entry (§4.5's Dedup cartridge, applied here
	// to the in-process bus).
	event := Event{Type: "domain.notification.projected", IdempotencyKey: "env-1"}
	require.NoError(t, bus.Publish(context.Background(), event))
	require.NoError(t, bus.Publish(context.Background(), event))

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))

	history, err := bus.History(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryEventBus_IdempotencyDedup_DistinctKeysBothFire(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count int32
	_, err := bus.Subscribe("domain.notification.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: "domain.notification.projected", IdempotencyKey: "env-1"}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: "domain.notification.projected", IdempotencyKey: "env-2"}))

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&count))
}

func TestMemoryEventBus_GroupCoalescing_History(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
		HistoryMaxAge:    time.Hour,
	})
	defer bus.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{
			Type:     "domain.notification.projected",
			GroupKey: "todo-42",
		}))
	}

	history, err := bus.History(EventFilter{GroupKey: "todo-42"})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryEventBus_History(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
		HistoryMaxAge:    time.Hour,
	})
	defer bus.Close()

	events := []Event{
		{Type: "domain.service.started", SessionID: "main"},
		{Type: "domain.service.stopped", SessionID: "main"},
		{Type: "domain.session.created", SessionID: "feature"},
	}
	for _, e := range events {
		bus.Publish(context.Background(), e)
	}

	history, err := bus.History(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 3)

	history, err = bus.History(EventFilter{Types: []string{"domain.service.*"}})
	require.NoError(t, err)
	assert.Len(t, history, 2)

	history, err = bus.History(EventFilter{SessionID: "main"})
	require.NoError(t, err)
	assert.Len(t, history, 2)

	history, err = bus.History(EventFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryEventBus_History_TimeFilter(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
		HistoryMaxAge:    time.Hour,
	})
	defer bus.Close()

	bus.Publish(context.Background(), Event{Type: "domain.service.started"})

	now := time.Now()

	history, err := bus.History(EventFilter{Since: now.Add(time.Second)})
	require.NoError(t, err)
	assert.Len(t, history, 0)

	history, err = bus.History(EventFilter{Until: now.Add(-24 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, history, 0)

	history, err = bus.History(EventFilter{
		Since: now.Add(-time.Hour),
		Until: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryEventBus_Close(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})

	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		return nil
	})
	require.NoError(t, err)

	err = bus.Close()
	require.NoError(t, err)

	err = bus.Publish(context.Background(), Event{Type: "test"})
	assert.Error(t, err)

	_, err = bus.Subscribe("*", func(ctx context.Context, e Event) error {
		return nil
	})
	assert.Error(t, err)

	err = bus.Close()
	assert.NoError(t, err)
}

func TestMemoryEventBus_Concurrency(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 1000,
	})
	defer bus.Close()

	var count int64
	var wg sync.WaitGroup

	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(context.Background(), Event{Type: "domain.service.started"})
			}
		}()
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int64(1000), atomic.LoadInt64(&count))
}

func TestMemoryEventBus_HandlerError(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count int32

	_, err := bus.Subscribe("domain.service.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return assert.AnError
	})
	require.NoError(t, err)

	_, err = bus.Subscribe("domain.service.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), Event{Type: "domain.service.started"})
	assert.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&count))
}

func TestMemoryEventBus_HandlerPanicIsolated(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count int32

	_, err := bus.Subscribe("domain.service.*", func(ctx context.Context, e Event) error {
		panic("boom")
	})
	require.NoError(t, err)

	_, err = bus.Subscribe("domain.service.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		err := bus.Publish(context.Background(), Event{Type: "domain.service.started"})
		assert.NoError(t, err)
	})

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestMemoryEventBus_ContextCancellation(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	received := make(chan bool, 1)

	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		select {
		case <-ctx.Done():
			received <- false
		default:
			received <- true
		}
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	bus.Publish(ctx, Event{Type: "test"})

	select {
	case ok := <-received:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestMemoryEventBus_SetDefaultSessionID(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
	})
	defer bus.Close()

	bus.SetDefaultSessionID("main")

	var receivedEvent Event
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		receivedEvent = e
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), Event{Type: "domain.service.started"})
	require.NoError(t, err)

	assert.Equal(t, "main", receivedEvent.SessionID)
}

func TestMemoryEventBus_SetDefaultSessionID_DoesNotOverride(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
	})
	defer bus.Close()

	bus.SetDefaultSessionID("main")

	var receivedEvent Event
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		receivedEvent = e
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), Event{
		Type:      "domain.service.started",
		SessionID: "feature",
	})
	require.NoError(t, err)

	assert.Equal(t, "feature", receivedEvent.SessionID)
}

func TestMemoryEventBus_SetDefaultSessionID_CanBeChanged(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
	})
	defer bus.Close()

	receivedEvents := make([]Event, 0)
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		receivedEvents = append(receivedEvents, e)
		return nil
	})
	require.NoError(t, err)

	bus.SetDefaultSessionID("main")
	bus.Publish(context.Background(), Event{Type: "test1"})

	bus.SetDefaultSessionID("feature")
	bus.Publish(context.Background(), Event{Type: "test2"})

	require.Len(t, receivedEvents, 2)
	assert.Equal(t, "main", receivedEvents[0].SessionID)
	assert.Equal(t, "feature", receivedEvents[1].SessionID)
}

func TestMemoryEventBus_SetDefaultSessionID_History(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
		HistoryMaxAge:    time.Hour,
	})
	defer bus.Close()

	bus.SetDefaultSessionID("main")

	bus.Publish(context.Background(), Event{Type: "domain.service.started"})
	bus.Publish(context.Background(), Event{Type: "domain.service.stopped", SessionID: "feature"})

	history, err := bus.History(EventFilter{SessionID: "main"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "domain.service.started", history[0].Type)

	history, err = bus.History(EventFilter{SessionID: "feature"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "domain.service.stopped", history[0].Type)
}

func TestMemoryEventBus_SetDefaultSessionID_Concurrent(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 1000,
	})
	defer bus.Close()

	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.SetDefaultSessionID(fmt.Sprintf("session-%d", n))
			}
		}(i)
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(context.Background(), Event{Type: "test"})
			}
		}()
	}

	wg.Wait()

	history, err := bus.History(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 500)

	for _, e := range history {
		_ = e.SessionID
	}
}
