// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/idgen"
)

// ErrBusClosed is returned when operating on a closed bus.
var ErrBusClosed = errors.New("events: bus is closed")

// ErrSubscriptionNotFound is returned when unsubscribing with invalid ID.
var ErrSubscriptionNotFound = errors.New("events: subscription not found")

// MemoryBusConfig configures the memory event bus.
type MemoryBusConfig struct {
	HistoryMaxEvents int
	HistoryMaxAge    time.Duration
	Logger           *zap.Logger
}

// MemoryEventBus is an in-memory event bus implementation. Idempotency-key
// dedup and group-key coalescing give local subscribers the same guarantees §4.5's Dedup and
// NotificationProjector cartridges give the durable Store side, so a
// retried envelope publish never double-notifies a listener and a burst of
// updates to one group never leaves more than one live history entry.
type MemoryEventBus struct {
	mu               sync.RWMutex
	subscriptions    map[SubscriptionID]*subscription
	history          *GroupHistory
	matcher          *PatternMatcher
	ids              *idgen.Generator
	closed           atomic.Bool
	wg               sync.WaitGroup
	defaultSessionID string
	seenIdempotency  map[string]time.Time
	stopPruner       chan struct{}
	logger           *zap.Logger
}

type subscription struct {
	id      SubscriptionID
	pattern CompiledPattern
	handler EventHandler
	async   bool
	ch      chan Event
	stopCh  chan struct{}
}

// NewMemoryEventBus creates a new in-memory event bus.
func NewMemoryEventBus(cfg MemoryBusConfig) *MemoryEventBus {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bus := &MemoryEventBus{
		subscriptions:   make(map[SubscriptionID]*subscription),
		history:         NewEventHistory(EventHistoryConfig{MaxEvents: cfg.HistoryMaxEvents, MaxAge: cfg.HistoryMaxAge}),
		matcher:         NewPatternMatcher(),
		ids:             idgen.New(time.Now),
		seenIdempotency: make(map[string]time.Time),
		stopPruner:      make(chan struct{}),
		logger:          logger,
	}

	// Background pruner enforces max_age on both retained history and the
	// idempotency-dedup set, so a long-lived daemon doesn't grow either
	// without bound.
	pruneInterval := cfg.HistoryMaxAge / 10
	if pruneInterval < time.Minute {
		pruneInterval = time.Minute
	}
	if pruneInterval > time.Hour {
		pruneInterval = time.Hour
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-bus.stopPruner:
				return
			case <-ticker.C:
				bus.history.Prune()
				bus.pruneIdempotency(cfg.HistoryMaxAge)
			}
		}
	}()

	return bus
}

// SetDefaultSessionID sets the default session id for events that don't
// specify one.
func (bus *MemoryEventBus) SetDefaultSessionID(sessionID string) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.defaultSessionID = sessionID
}

// Publish emits an event to all matching subscribers. An event carrying an
// IdempotencyKey already seen by this bus is dropped before it reaches
// history or any subscriber — mirroring the durable Dedup cartridge's
// at-most-once-per-key guarantee for local listeners, so an outbox retry of
// the same envelope never fires a local tail twice for the same logical
// update.
func (bus *MemoryEventBus) Publish(ctx context.Context, event Event) error {
	if bus.closed.Load() {
		return ErrBusClosed
	}

	if event.IdempotencyKey != "" {
		bus.mu.Lock()
		if _, seen := bus.seenIdempotency[event.IdempotencyKey]; seen {
			bus.mu.Unlock()
			return nil
		}
		bus.seenIdempotency[event.IdempotencyKey] = time.Now()
		bus.mu.Unlock()
	}

	if event.ID == "" {
		id, err := bus.ids.Next()
		if err != nil {
			return err
		}
		event.ID = id
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.SessionID == "" {
		bus.mu.RLock()
		event.SessionID = bus.defaultSessionID
		bus.mu.RUnlock()
	}

	// Coalesced by GroupKey in history, so a late subscriber querying
	// history sees one current entry per group rather than a backlog.
	bus.history.Add(event)

	bus.mu.RLock()
	subs := make([]*subscription, 0, len(bus.subscriptions))
	for _, sub := range bus.subscriptions {
		subs = append(subs, sub)
	}
	bus.mu.RUnlock()

	for _, sub := range subs {
		if !sub.pattern.Match(event.Type) {
			continue
		}
		if sub.async {
			select {
			case sub.ch <- event:
			default:
				bus.logger.Warn("dropped event, async subscriber buffer full", zap.String("type", event.Type))
			}
			continue
		}
		bus.dispatch(ctx, sub, event)
	}

	return nil
}

// dispatch calls a synchronous subscriber with panic protection, matching
// the async path's isolation: one misbehaving handler never stops the bus
// from reaching the rest, or from returning control to Publish's caller.
func (bus *MemoryEventBus) dispatch(ctx context.Context, sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error("event handler panic", zap.String("type", event.Type), zap.Any("recovered", r))
		}
	}()
	if err := sub.handler(ctx, event); err != nil {
		bus.logger.Warn("event handler returned error", zap.String("type", event.Type), zap.Error(err))
	}
}

// Subscribe registers a synchronous handler for events matching pattern.
func (bus *MemoryEventBus) Subscribe(pattern string, handler EventHandler) (SubscriptionID, error) {
	if bus.closed.Load() {
		return "", ErrBusClosed
	}

	compiled, err := bus.matcher.Compile(pattern)
	if err != nil {
		return "", err
	}

	id, err := bus.ids.Next()
	if err != nil {
		return "", err
	}

	sub := &subscription{
		id:      SubscriptionID(id),
		pattern: compiled,
		handler: handler,
		async:   false,
	}

	bus.mu.Lock()
	bus.subscriptions[sub.id] = sub
	bus.mu.Unlock()

	return sub.id, nil
}

// SubscribeAsync registers an async handler with a buffered channel.
func (bus *MemoryEventBus) SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error) {
	if bus.closed.Load() {
		return "", ErrBusClosed
	}

	compiled, err := bus.matcher.Compile(pattern)
	if err != nil {
		return "", err
	}

	if bufferSize <= 0 {
		bufferSize = 100
	}

	id, err := bus.ids.Next()
	if err != nil {
		return "", err
	}
	ch := make(chan Event, bufferSize)
	stopCh := make(chan struct{})

	sub := &subscription{
		id:      SubscriptionID(id),
		pattern: compiled,
		handler: handler,
		async:   true,
		ch:      ch,
		stopCh:  stopCh,
	}

	bus.mu.Lock()
	bus.subscriptions[sub.id] = sub
	bus.mu.Unlock()

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		for {
			select {
			case <-stopCh:
				return
			case event := <-ch:
				bus.dispatch(context.Background(), sub, event)
			}
		}
	}()

	return sub.id, nil
}

// Unsubscribe removes a subscription.
func (bus *MemoryEventBus) Unsubscribe(id SubscriptionID) error {
	bus.mu.Lock()
	sub, ok := bus.subscriptions[id]
	if !ok {
		bus.mu.Unlock()
		return ErrSubscriptionNotFound
	}
	delete(bus.subscriptions, id)
	bus.mu.Unlock()

	if sub.async && sub.stopCh != nil {
		close(sub.stopCh)
	}

	return nil
}

// History retrieves past events matching filter.
func (bus *MemoryEventBus) History(filter EventFilter) ([]Event, error) {
	return bus.history.Query(filter), nil
}

// Close shuts down the event bus gracefully.
func (bus *MemoryEventBus) Close() error {
	if bus.closed.Swap(true) {
		return nil // Already closed
	}

	close(bus.stopPruner)

	bus.mu.Lock()
	for _, sub := range bus.subscriptions {
		if sub.async && sub.stopCh != nil {
			close(sub.stopCh)
		}
	}
	bus.subscriptions = make(map[SubscriptionID]*subscription)
	bus.mu.Unlock()

	bus.wg.Wait()
	bus.history.Close()

	return nil
}

// pruneIdempotency drops idempotency keys older than maxAge so a long-lived
// daemon's dedup set doesn't grow without bound. maxAge <= 0 falls back to
// the history's own default window.
func (bus *MemoryEventBus) pruneIdempotency(maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	cutoff := time.Now().Add(-maxAge)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	for key, seenAt := range bus.seenIdempotency {
		if seenAt.Before(cutoff) {
			delete(bus.seenIdempotency, key)
		}
	}
}
