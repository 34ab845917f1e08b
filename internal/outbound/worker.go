// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package outbound implements the durable outbound event outbox worker
// pool and the dual-path output-polling observer (§4.4): agent output,
// whichever leg produced it, is turned into an EventEnvelope, run through
// the pipeline, and fanned out here to every subscribed adapter.
package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/store"
)

// Fanout delivers one output update to adapters. Implemented by the
// adapter package's Registry; narrowed to an interface here so this
// package never imports internal/adapter (mirrors internal/inbound's
// MultiplexerBridge narrowing).
type Fanout interface {
	Broadcast(ctx context.Context, sess model.Session, text string, startedAt, lastChangedAt time.Time) error
	SendToAdapter(ctx context.Context, sess model.Session, adapterName, text string, startedAt, lastChangedAt time.Time) error
}

// SessionLookup resolves a session record by id. Implemented by
// internal/session.Registry.
type SessionLookup interface {
	Get(ctx context.Context, sessionID string) (*model.Session, error)
}

// Clock supplies the current time, deterministic under test.
type Clock func() time.Time

const (
	lockWindow     = 5 * time.Minute
	baseBackoff    = 2 * time.Second
	maxBackoff     = 300 * time.Second
	fetchBatchSize = 8
	pollInterval   = 500 * time.Millisecond
)

// outputUpdatePayload is the wire shape every outbox row this worker
// processes carries: the single send_output_update contract (§4.4) applies
// uniformly regardless of what produced the envelope.
type outputUpdatePayload struct {
	SessionID     string    `json:"session_id"`
	Text          string    `json:"text"`
	StartedAt     time.Time `json:"started_at"`
	LastChangedAt time.Time `json:"last_changed_at"`
}

// Worker drains the outbound_event_queue: a single pool-wide loop, not one
// goroutine per session — fanout delivery has no per-session ordering
// requirement the way inbound delivery does.
type Worker struct {
	store    *store.Store
	sessions SessionLookup
	fanout   Fanout
	clock    Clock
	logger   *zap.Logger

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewWorker constructs a Worker. clock defaults to time.Now if nil.
func NewWorker(st *store.Store, sessions SessionLookup, fanout Fanout, clock Clock, logger *zap.Logger) *Worker {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{store: st, sessions: sessions, fanout: fanout, clock: clock, logger: logger}
}

// Start launches the drain loop in the background. Call Shutdown to stop it.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
}

// Shutdown stops the drain loop and waits for it to exit. Rows it has not
// yet claimed remain durable for the next Start to pick up.
func (w *Worker) Shutdown() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

// drainOnce claims and delivers every currently pending row, looping until
// a full batch comes back empty.
func (w *Worker) drainOnce(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := w.clock()
		rows, err := w.store.FetchPendingOutbox(ctx, fetchBatchSize, now, now.Add(-lockWindow))
		if err != nil {
			w.logger.Error("fetch pending outbox failed", zap.Error(err))
			return
		}
		if len(rows) == 0 {
			return
		}

		delivered := 0
		for _, row := range rows {
			if w.processRow(ctx, row) {
				delivered++
			}
		}
		if delivered == 0 {
			return
		}
	}
}

// processRow claims, delivers, and finalizes a single outbox row. Returns
// true if it made progress (claimed, whether or not delivery succeeded).
func (w *Worker) processRow(ctx context.Context, row model.OutboxRow) bool {
	claimNow := w.clock()
	claimed, err := w.store.ClaimOutbox(ctx, row.ID, claimNow, claimNow.Add(-lockWindow))
	if err != nil {
		w.logger.Error("claim outbox failed", zap.Int64("row_id", row.ID), zap.Error(err))
		return false
	}
	if !claimed {
		return false
	}

	if err := w.deliver(ctx, row); err != nil {
		backoff := backoffFor(row.Attempts)
		if err := w.store.MarkOutboxFailed(ctx, row.ID, w.clock(), backoff, err.Error()); err != nil {
			w.logger.Error("mark outbox failed failed", zap.Int64("row_id", row.ID), zap.Error(err))
		}
		return true
	}

	if err := w.store.MarkOutboxDelivered(ctx, row.ID, w.clock()); err != nil {
		w.logger.Error("mark outbox delivered failed", zap.Int64("row_id", row.ID), zap.Error(err))
	}
	return true
}

func (w *Worker) deliver(ctx context.Context, row model.OutboxRow) error {
	var payload outputUpdatePayload
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		return fmt.Errorf("decode outbox payload: %w", err)
	}

	sess, err := w.sessions.Get(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("load session for outbox row: %w", err)
	}
	if sess == nil {
		// The session was closed and forgotten; nothing left to update.
		return nil
	}

	if row.TargetAdapter != "" {
		return w.fanout.SendToAdapter(ctx, *sess, row.TargetAdapter, payload.Text, payload.StartedAt, payload.LastChangedAt)
	}
	return w.fanout.Broadcast(ctx, *sess, payload.Text, payload.StartedAt, payload.LastChangedAt)
}

// backoffFor computes the exponential backoff for a row's next attempt,
// mirroring internal/inbound's formula (§4.2/§4.4 "same CAS claim, same
// exponential backoff").
func backoffFor(attempts int) time.Duration {
	backoff := baseBackoff
	for i := 0; i < attempts; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
