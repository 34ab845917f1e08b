// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sync"
	"time"
)

// EventHistoryConfig configures event history retention.
type EventHistoryConfig struct {
	MaxEvents int
	MaxAge    time.Duration
}

// GroupHistory retains published events for History queries and late
// subscribers. It coalesces by GroupKey the same way the durable
// NotificationProjector coalesces NotificationRows (§4.5): a later event
// sharing a non-empty GroupKey with an already-retained event replaces that
// entry in place rather than appending a second live line, so a client
// re-querying history after a burst of updates sees one current entry per
// group instead of a backlog of superseded ones. Events with no GroupKey
// are always appended independently.
type GroupHistory struct {
	mu        sync.RWMutex
	events    []Event
	byGroup   map[string]int // group_key -> index into events
	maxEvents int
	maxAge    time.Duration
	matcher   *PatternMatcher
}

// NewEventHistory creates a new, empty GroupHistory.
func NewEventHistory(cfg EventHistoryConfig) *GroupHistory {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 10000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}

	return &GroupHistory{
		events:    make([]Event, 0),
		byGroup:   make(map[string]int),
		maxEvents: cfg.MaxEvents,
		maxAge:    cfg.MaxAge,
		matcher:   NewPatternMatcher(),
	}
}

// Add stores an event, coalescing onto an existing entry with the same
// GroupKey when one is retained.
func (h *GroupHistory) Add(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if event.GroupKey != "" {
		if idx, ok := h.byGroup[event.GroupKey]; ok && idx < len(h.events) && h.events[idx].GroupKey == event.GroupKey {
			h.events[idx] = event
			return
		}
	}

	h.events = append(h.events, event)
	if event.GroupKey != "" {
		h.byGroup[event.GroupKey] = len(h.events) - 1
	}

	if len(h.events) > h.maxEvents {
		h.evictFront(len(h.events) - h.maxEvents)
	}
}

// evictFront drops the oldest n retained events and rebuilds the group
// index, since every remaining event's slice position shifts.
func (h *GroupHistory) evictFront(n int) {
	h.events = h.events[n:]
	h.reindex()
}

func (h *GroupHistory) reindex() {
	h.byGroup = make(map[string]int, len(h.byGroup))
	for i, e := range h.events {
		if e.GroupKey != "" {
			h.byGroup[e.GroupKey] = i
		}
	}
}

// Query retrieves events matching filter, oldest first (retained order).
func (h *GroupHistory) Query(filter EventFilter) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Event, 0, len(h.events))
	for _, event := range h.events {
		if h.matches(event, filter) {
			result = append(result, event)
		}
	}

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}

	return result
}

func (h *GroupHistory) matches(event Event, filter EventFilter) bool {
	if len(filter.Types) > 0 {
		matched := false
		for _, pattern := range filter.Types {
			if h.matcher.Match(event.Type, pattern) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if filter.SessionID != "" && event.SessionID != filter.SessionID {
		return false
	}

	if filter.GroupKey != "" && event.GroupKey != filter.GroupKey {
		return false
	}

	if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
		return false
	}

	if !filter.Until.IsZero() && event.Timestamp.After(filter.Until) {
		return false
	}

	return true
}

// Prune removes events older than max age.
func (h *GroupHistory) Prune() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-h.maxAge)
	filtered := make([]Event, 0, len(h.events))
	for _, event := range h.events {
		if event.Timestamp.After(cutoff) {
			filtered = append(filtered, event)
		}
	}

	h.events = filtered
	h.reindex()
}

// Close releases resources.
func (h *GroupHistory) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
	h.byGroup = nil
}
