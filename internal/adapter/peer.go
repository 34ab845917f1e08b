// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/teleclaude/teleclaude/internal/model"
)

// PeerAdapter represents a session whose origin is another teleclaude
// daemon rather than a chat platform (§4.2 glossary "peer"). The remote
// daemon owns presenting output to its own adapters; this process has
// nothing further to post, so every call is a no-op.
type PeerAdapter struct{}

// NewPeerAdapter builds the peer no-op adapter.
func NewPeerAdapter() *PeerAdapter { return &PeerAdapter{} }

// Name implements Adapter.
func (a *PeerAdapter) Name() string { return "peer" }

// SendOutputUpdate implements Adapter: the peer daemon's own adapters
// already observed the output locally, so there is nothing to post here.
func (a *PeerAdapter) SendOutputUpdate(ctx context.Context, sessionID, text string, startedAt, lastChangedAt time.Time, meta json.RawMessage) (json.RawMessage, error) {
	return meta, nil
}

// NotifyObserverUpdate implements Adapter: a no-op for the same reason.
func (a *PeerAdapter) NotifyObserverUpdate(ctx context.Context, sessionID string, row model.InboundRow) error {
	return nil
}

// PublishToChannel implements Adapter: a no-op for the same reason.
func (a *PeerAdapter) PublishToChannel(ctx context.Context, channelID, text string) error {
	return nil
}
