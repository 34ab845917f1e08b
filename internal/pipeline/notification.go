// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"

	"github.com/teleclaude/teleclaude/internal/model"
)

// NotificationProjector is the second mandatory cartridge (§4.5): every
// envelope carrying an idempotency_key gets projected into (or coalesced
// onto, by idempotency_key) a NotificationRow that records group_key when
// present; envelopes sharing a group_key but not an idempotency_key are not
// merged. An envelope with no idempotency_key has nothing to project and
// passes through as-is.
type NotificationProjector struct{}

// Name implements Cartridge.
func (NotificationProjector) Name() string { return "notification_projector" }

// Process implements Cartridge.
func (NotificationProjector) Process(ctx context.Context, pctx Context, env model.EventEnvelope) (*model.EventEnvelope, error) {
	if env.IdempotencyKey == "" {
		return &env, nil
	}

	_, err := pctx.Store.UpsertNotification(ctx, model.NotificationRow{
		IdempotencyKey: env.IdempotencyKey,
		GroupKey:       env.GroupKey,
		EnvelopeID:     env.EnvelopeID,
		Summary:        summarize(env),
		Payload:        env.Payload,
	})
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// summarize derives a short human-readable line for the notification feed
// from the envelope's type; domain cartridges that need richer summaries
// update the notification directly through the Store's public contract.
func summarize(env model.EventEnvelope) string {
	return fmt.Sprintf("%s (producer=%s)", env.Type, env.ProducerID)
}
