// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the in-process pub/sub bus that internal/app
// mirrors every published envelope onto for local diagnostics; no
// control-plane endpoint reads from it. It is deliberately distinct from
// model.EventEnvelope: envelopes are the durable, pipeline-processed record
// published to the Store and outbox; Event here is the lightweight,
// ephemeral broadcast of that same activity to in-process listeners, with no
// durability guarantee of its own.
//
// Because Event carries the same GroupKey/IdempotencyKey pair the durable
// side dedups and coalesces on (§4.5's Dedup and NotificationProjector
// cartridges), the bus applies the identical semantics locally: a listener
// that attaches mid-burst never sees two live entries for one group, and a
// retried envelope publish never double-fires a subscriber for the same
// idempotency key. See MemoryEventBus.Publish and GroupHistory.Add.
package events

import (
	"context"
	"time"
)

// Event is the ephemeral, in-process broadcast of a published envelope.
type Event struct {
	ID             string
	Type           string
	Timestamp      time.Time
	SessionID      string
	GroupKey       string
	IdempotencyKey string
	Payload        map[string]interface{}
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types     []string  // Event types to match (supports the segment wildcards pattern.go defines)
	SessionID string    // Filter by session
	GroupKey  string    // Filter by the durable envelope's coalescing key
	Since     time.Time // Events after this time
	Until     time.Time // Events before this time
	Limit     int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers, applying the same
	// group-coalescing and idempotency dedup the durable pipeline applies to
	// NotificationRows.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// SetDefaultSessionID sets the session id stamped onto events that don't
	// specify one (e.g. daemon-wide lifecycle events with no session of
	// their own).
	SetDefaultSessionID(sessionID string)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Domain event type vocabulary (§3 EventEnvelope.Type, §9 diagnostic
// envelope catalog). Dotted namespace: domain.<area>.<verb>. These mirror
// the type strings published as model.EventEnvelope; the in-process bus
// rebroadcasts them for local subscribers rather than minting its own.
const (
	// Daemon lifecycle.
	EventServiceStarted = "domain.service.started"
	EventServiceStopped = "domain.service.stopped"
	EventServiceCrashed = "domain.service.crashed"

	// Session lifecycle.
	EventSessionCreated = "domain.session.created"
	EventSessionPaused  = "domain.session.paused"
	EventSessionClosed  = "domain.session.closed"

	// Delivery diagnostics (§4.7 failure semantics, §9 supplement 1).
	EventDeliveryPermanentFailure = "domain.delivery.permanent_failure"
	EventDeliveryRetryExhausted   = "domain.delivery.retry_exhausted"

	// Notification projection (§4.5 cartridge 2).
	EventNotificationProjected = "domain.notification.projected"
	EventNotificationResolved  = "domain.notification.resolved"

	// Prepare-quality runner (§4.5 canonical domain cartridge).
	EventPrepareQualityScored = "domain.prepare_quality.scored"
)
