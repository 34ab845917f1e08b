// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"

	"github.com/teleclaude/teleclaude/internal/model"
)

// Dedup is the first mandatory cartridge (§4.5): envelopes with an
// idempotency_key that has already been projected to a notification are
// dropped before any later cartridge sees them. An envelope with no
// idempotency_key has nothing to dedup against and always passes through.
type Dedup struct{}

// Name implements Cartridge.
func (Dedup) Name() string { return "dedup" }

// Process implements Cartridge.
func (Dedup) Process(ctx context.Context, pctx Context, env model.EventEnvelope) (*model.EventEnvelope, error) {
	if env.IdempotencyKey == "" {
		return &env, nil
	}
	existing, err := pctx.Store.GetNotificationByKey(ctx, env.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}
	return &env, nil
}
