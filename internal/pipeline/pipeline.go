// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package pipeline implements the ordered cartridge chain every published
// event envelope flows through (§4.5): deduplication, notification
// projection, then zero or more domain cartridges reacting to specific
// envelope type prefixes.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/store"
)

// Context is what a cartridge is handed alongside the envelope it is
// processing. Domain cartridges may read/write files under Workspace and
// call Store only through its public contract — never reach into the
// database directly.
type Context struct {
	Store     *store.Store
	Clock     func() time.Time
	Logger    *zap.Logger
	Workspace string
}

// Cartridge is one stage of the pipeline. Process returns the envelope
// (unchanged or mutated) to pass it to the next stage, or nil to drop it
// (§4.5 pass-through discipline: only Dedup is expected to ever drop).
type Cartridge interface {
	Name() string
	Process(ctx context.Context, pctx Context, env model.EventEnvelope) (*model.EventEnvelope, error)
}

// slowCartridgeThreshold is the per-envelope budget domain cartridges are
// expected to honor (§4.5: "< 2s per envelope or they log a warning").
const slowCartridgeThreshold = 2 * time.Second

// Pipeline runs every registered cartridge in order, then durably enqueues
// one outbox row per target adapter (or a single broadcast row) for
// whatever the chain did not drop.
type Pipeline struct {
	store      *store.Store
	cartridges []Cartridge
	pctx       Context
	logger     *zap.Logger
}

// New builds a Pipeline. Workspace is the root directory domain cartridges
// are permitted to read/write under.
func New(st *store.Store, clock func() time.Time, logger *zap.Logger, workspace string, cartridges ...Cartridge) *Pipeline {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:      st,
		cartridges: cartridges,
		logger:     logger,
		pctx: Context{
			Store:     st,
			Clock:     clock,
			Logger:    logger,
			Workspace: workspace,
		},
	}
}

// Publish persists env, runs it through every cartridge, and — unless a
// cartridge drops it — inserts one outbox row. targetAdapters is empty for
// a broadcast row, or names specific adapters for targeted delivery.
func (p *Pipeline) Publish(ctx context.Context, env model.EventEnvelope, targetAdapters ...string) error {
	if err := p.store.InsertEnvelope(ctx, env); err != nil {
		return err
	}

	cur := &env
	for _, c := range p.cartridges {
		start := p.pctx.Clock()
		next, err := c.Process(ctx, p.pctx, *cur)
		if err != nil {
			return err
		}
		if elapsed := p.pctx.Clock().Sub(start); elapsed > slowCartridgeThreshold {
			p.logger.Warn("cartridge exceeded latency budget",
				zap.String("cartridge", c.Name()), zap.String("envelope_id", cur.EnvelopeID), zap.Duration("elapsed", elapsed))
		}
		if next == nil {
			p.logger.Debug("envelope dropped", zap.String("cartridge", c.Name()), zap.String("envelope_id", cur.EnvelopeID))
			return nil
		}
		cur = next
	}

	now := p.pctx.Clock()

	if len(targetAdapters) == 0 {
		_, err := p.store.InsertOutboxRow(ctx, now, cur.EnvelopeID, "", cur.Payload)
		return err
	}
	for _, adapter := range targetAdapters {
		if _, err := p.store.InsertOutboxRow(ctx, now, cur.EnvelopeID, adapter, cur.Payload); err != nil {
			return err
		}
	}
	return nil
}
