// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/errs"
	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/store"
)

// Registry is the process-wide set of transport adapters. It implements
// both fanout contracts named in §4.3/§4.4: the inbound delivery primitive's
// observer notification and thread-breaking, and the outbound outbox
// worker's broadcast of output updates.
type Registry struct {
	store  *store.Store
	logger *zap.Logger

	mu       sync.RWMutex
	adapters map[string]Adapter
}

// New constructs an empty Registry. Adapters are added with Register.
func New(st *store.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: st, logger: logger, adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own Name(). Registering the same name
// twice replaces the previous entry.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

func (r *Registry) snapshot() map[string]Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Adapter, len(r.adapters))
	for k, v := range r.adapters {
		out[k] = v
	}
	return out
}

func (r *Registry) get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

func cloneMeta(meta map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// NotifyObserverUpdate implements internal/inbound.Fanout: every registered
// adapter other than originAdapter is shown the new inbound message. A
// failure on one adapter never blocks the others or the caller — it is
// logged and swallowed, matching §4.3 step 5's "best effort" framing (the
// step that must not fail is the keystroke injection itself).
func (r *Registry) NotifyObserverUpdate(ctx context.Context, sess model.Session, originAdapter string, row model.InboundRow) error {
	for name, a := range r.snapshot() {
		if name == originAdapter {
			continue
		}
		if err := a.NotifyObserverUpdate(ctx, sess.ID, row); err != nil {
			r.logger.Warn("observer notify failed", zap.String("adapter", name), zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	return nil
}

// BreakThreadedOutput implements internal/inbound.Fanout: clears every
// adapter's tracked message reference so the next SendOutputUpdate call
// posts a fresh message rather than editing stale content (§4.3 step 3).
func (r *Registry) BreakThreadedOutput(ctx context.Context, sess model.Session) error {
	meta := cloneMeta(sess.AdapterMetadata)
	changed := false
	for name := range r.snapshot() {
		if _, ok := meta[name]; ok {
			delete(meta, name)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := r.store.UpdateSessionMetadata(ctx, sess.ID, meta); err != nil {
		return errs.Transient(err, "persist adapter metadata")
	}
	return nil
}

// Broadcast implements the outbound outbox worker's broadcast target
// (OutboxRow.TargetAdapter == ""): every registered adapter receives the
// same output update concurrently (§5 "outbound fanout... is concurrent").
// Each adapter's returned metadata is persisted under its own slice so a
// later call only edits that adapter's own message.
func (r *Registry) Broadcast(ctx context.Context, sess model.Session, text string, startedAt, lastChangedAt time.Time) error {
	adapters := r.snapshot()
	if len(adapters) == 0 {
		return nil
	}

	var mu sync.Mutex
	meta := cloneMeta(sess.AdapterMetadata)
	var firstErr error

	var wg sync.WaitGroup
	for name, a := range adapters {
		wg.Add(1)
		go func(name string, a Adapter) {
			defer wg.Done()
			updated, err := a.SendOutputUpdate(ctx, sess.ID, text, startedAt, lastChangedAt, meta[name])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("adapter output update failed", zap.String("adapter", name), zap.String("session_id", sess.ID), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if updated != nil {
				meta[name] = updated
			}
		}(name, a)
	}
	wg.Wait()

	if err := r.store.UpdateSessionMetadata(ctx, sess.ID, meta); err != nil {
		return errs.Transient(err, "persist adapter metadata")
	}
	if firstErr != nil {
		return errs.Transient(firstErr, "one or more adapters failed output update")
	}
	return nil
}

// PublishToChannel implements the control plane's channels.publish
// endpoint (§6): posts text to channelID on the named adapter, independent
// of any session.
func (r *Registry) PublishToChannel(ctx context.Context, adapterName, channelID, text string) error {
	a, ok := r.get(adapterName)
	if !ok {
		return errs.Permanent(nil, "unknown adapter: "+adapterName)
	}
	if err := a.PublishToChannel(ctx, channelID, text); err != nil {
		return errs.Transient(err, "publish to channel failed")
	}
	return nil
}

// SendToAdapter implements the outbound outbox worker's targeted delivery
// (OutboxRow.TargetAdapter != ""): only the named adapter receives the
// update.
func (r *Registry) SendToAdapter(ctx context.Context, sess model.Session, adapterName, text string, startedAt, lastChangedAt time.Time) error {
	a, ok := r.get(adapterName)
	if !ok {
		return errs.Permanent(nil, "unknown adapter: "+adapterName)
	}

	meta := cloneMeta(sess.AdapterMetadata)
	updated, err := a.SendOutputUpdate(ctx, sess.ID, text, startedAt, lastChangedAt, meta[adapterName])
	if err != nil {
		return errs.Transient(err, "adapter output update failed")
	}
	if updated == nil {
		return nil
	}
	meta[adapterName] = updated
	if err := r.store.UpdateSessionMetadata(ctx, sess.ID, meta); err != nil {
		return errs.Transient(err, "persist adapter metadata")
	}
	return nil
}
