// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package adapter implements the transport-specific components that
// translate between an external protocol (chat platform, peer daemon,
// local web UI) and the core's enqueue/fanout contract (§4.4, §6). There is
// one code path for all session types in the fanout registry below; what
// varies between sessions is only the source of output (§4.4), handled
// upstream in internal/outbound.
package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/teleclaude/teleclaude/internal/model"
)

// Adapter is a registered transport. Every mutating call is expected to be
// idempotent from the caller's perspective — the inbound queue and outbound
// outbox both retry at-least-once.
type Adapter interface {
	// Name returns the adapter's registry key, also the key its slice of
	// adapter_metadata is stored under and the `origin` value inbound rows
	// carry when this adapter enqueues them.
	Name() string

	// SendOutputUpdate implements the edit-in-place contract (§4.4, §6):
	// meta is this adapter's previous adapter_metadata slice for the
	// session (nil if it has never posted). The first call posts a new
	// message; every subsequent call with non-nil meta edits it. Returns
	// the metadata to persist for next time.
	SendOutputUpdate(ctx context.Context, sessionID, text string, startedAt, lastChangedAt time.Time, meta json.RawMessage) (json.RawMessage, error)

	// NotifyObserverUpdate shows this adapter's channel that a new inbound
	// message arrived on a different origin (§4.3 step 5). Adapters with no
	// natural way to show this are a no-op.
	NotifyObserverUpdate(ctx context.Context, sessionID string, row model.InboundRow) error

	// PublishToChannel posts text to channelID, independent of any session
	// (control plane's channels.publish, §6). Unlike SendOutputUpdate this
	// is always a fresh post — there is no session-scoped metadata to edit
	// in place against.
	PublishToChannel(ctx context.Context, channelID, text string) error
}
