// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package model holds the durable domain types shared across the store,
// session registry, queues, and control plane.
package model

import (
	"encoding/json"
	"time"
)

// SystemRole is the caller's role within the orchestration fabric itself.
type SystemRole string

const (
	SystemRoleOrchestrator SystemRole = "orchestrator"
	SystemRoleWorker       SystemRole = "worker"
	SystemRoleObserver     SystemRole = "observer"
	SystemRolePeer         SystemRole = "peer"
)

// HumanRole is the caller's role from the human-facing org chart.
type HumanRole string

const (
	HumanRoleAdmin     HumanRole = "admin"
	HumanRoleMember    HumanRole = "member"
	HumanRoleWorker    HumanRole = "worker"
	HumanRoleHelpDesk  HumanRole = "help-desk"
	HumanRoleCustomer  HumanRole = "customer"
)

// SessionState is the lifecycle state of a Session. Monotonic except for
// paused<->active.
type SessionState string

const (
	SessionInitializing SessionState = "initializing"
	SessionActive        SessionState = "active"
	SessionPaused         SessionState = "paused"
	SessionClosed         SessionState = "closed"
)

// Session is a long-running agent process attached to a multiplexer pane.
type Session struct {
	ID                 string                     `json:"id"`
	Computer           string                     `json:"computer"`
	ProjectPath        string                     `json:"project_path"`
	MultiplexerSession string                     `json:"multiplexer_session"`
	OriginAdapter      string                     `json:"origin_adapter"`
	Title              string                     `json:"title"`
	SystemRole         SystemRole                 `json:"system_role"`
	HumanRole          HumanRole                  `json:"human_role"`
	CreatedAt          time.Time                  `json:"created_at"`
	LastActivityAt     time.Time                  `json:"last_activity_at"`
	State              SessionState               `json:"state"`
	AdapterMetadata    map[string]json.RawMessage `json:"adapter_metadata"`
	// OutputSinkPath, when set, names a file the hosted agent writes its own
	// output to. The multiplexer bridge prefers reading from this sink over
	// pane capture when present (§4.4).
	OutputSinkPath string `json:"output_sink_path,omitempty"`
	// Headless marks a session whose multiplexer pane, if found missing
	// unexpectedly, should be silently recreated rather than paused (§4.3
	// step 2, §4.7 failure semantics).
	Headless bool `json:"headless"`
}

// InboundStatus is the lifecycle status of an InboundRow.
type InboundStatus string

const (
	InboundPending    InboundStatus = "pending"
	InboundProcessing InboundStatus = "processing"
	InboundDelivered  InboundStatus = "delivered"
	InboundFailed     InboundStatus = "failed"
	InboundExpired    InboundStatus = "expired"
)

// IsTerminal reports whether the status admits no further mutation.
func (s InboundStatus) IsTerminal() bool {
	return s == InboundDelivered || s == InboundExpired
}

// MessageType classifies the payload of an InboundRow.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageVoice MessageType = "voice"
	MessageFile  MessageType = "file"
	MessageKeys  MessageType = "keys"
)

// InboundRow is a durable, per-session enqueued intent to deliver a user
// message to the agent hosted in that session.
type InboundRow struct {
	ID               int64           `json:"id"`
	SessionID        string          `json:"session_id"`
	Origin           string          `json:"origin"`
	MessageType      MessageType     `json:"message_type"`
	Content          string          `json:"content"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	ActorID          string          `json:"actor_id,omitempty"`
	ActorDisplayName string          `json:"actor_display_name,omitempty"`
	Status           InboundStatus   `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	AttemptCount     int             `json:"attempt_count"`
	NextRetryAt      *time.Time      `json:"next_retry_at,omitempty"`
	LastError        string          `json:"last_error,omitempty"`
	LockedAt         *time.Time      `json:"locked_at,omitempty"`
	SourceMessageID  string          `json:"source_message_id,omitempty"`
	SourceChannelID  string          `json:"source_channel_id,omitempty"`
}

// OutboxStatus is the lifecycle status of an OutboxRow. It reuses the same
// literal vocabulary as InboundStatus by design (spec §6 exact-string
// contracts).
type OutboxStatus = InboundStatus

// OutboxRow is a durable intent to deliver one event envelope to one
// adapter (or to every adapter, when TargetAdapter is empty).
type OutboxRow struct {
	ID            int64           `json:"id"`
	EnvelopeID    string          `json:"envelope_id"`
	TargetAdapter string          `json:"target_adapter,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Status        OutboxStatus    `json:"status"`
	Attempts      int             `json:"attempts"`
	NextRetryAt   *time.Time      `json:"next_retry_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	LockedAt      *time.Time      `json:"locked_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EventEnvelope is an immutable, time-ordered event record. Never mutated
// after publish.
type EventEnvelope struct {
	EnvelopeID     string          `json:"envelope_id"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	GroupKey       string          `json:"group_key,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	ProducedAt     time.Time       `json:"produced_at"`
	ProducerID     string          `json:"producer_id"`
}

// AgentStatus tracks whether a projected notification has been picked up or
// closed out by an agent.
type AgentStatus string

const (
	AgentStatusNone     AgentStatus = "none"
	AgentStatusClaimed  AgentStatus = "claimed"
	AgentStatusResolved AgentStatus = "resolved"
)

// NotificationRow is the projection of one or more envelopes sharing an
// idempotency_key; group_key is recorded but not used for coalescing.
type NotificationRow struct {
	ID             int64           `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	GroupKey       string          `json:"group_key,omitempty"`
	EnvelopeID     string          `json:"envelope_id"`
	Summary        string          `json:"summary"`
	AgentStatus    AgentStatus     `json:"agent_status"`
	ClaimedBy      string          `json:"claimed_by,omitempty"`
	ResolvedBy     string          `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Computer is a host on which sessions and their multiplexer panes live.
type Computer struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a working tree a session can be scoped to.
type Project struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Person is a human participant addressable across adapters.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	HumanRole HumanRole `json:"human_role"`
	CreatedAt time.Time `json:"created_at"`
}

// Channel is an adapter-scoped conversation the fanout can target.
type Channel struct {
	ID        string    `json:"id"`
	Adapter   string    `json:"adapter"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TodoPhase is the workflow phase of a catalog entry. The core holds no
// transition rules between phases (spec Non-goal); the pipeline's domain
// cartridges decide what follows what.
type TodoPhase string

const (
	TodoPhasePrepare TodoPhase = "prepare"
	TodoPhaseWork    TodoPhase = "work"
	TodoPhaseMaintain TodoPhase = "maintain"
	TodoPhaseDone     TodoPhase = "done"
)

// Todo is a minimal, shallow catalog entry: CRUD plus phase marking and
// dependency edges, with no hidden state-machine semantics.
type Todo struct {
	ID          string    `json:"id"`
	ProjectPath string    `json:"project_path"`
	Title       string    `json:"title"`
	Phase       TodoPhase `json:"phase"`
	DependsOn   []string  `json:"depends_on"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
