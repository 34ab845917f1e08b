// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package inbound implements the durable inbound message queue: per-session
// FIFO worker pool, CAS-claim drain loop, and exponential backoff retry
// (§4.2).
package inbound

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/errs"
	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/store"
)

// Deliverer runs the delivery primitive (§4.3) for a single claimed row.
// Implemented by the package wiring that combines the session registry, the
// multiplexer bridge, and the adapter fanout.
type Deliverer interface {
	Deliver(ctx context.Context, row model.InboundRow) error
}

// Clock supplies the current time, deterministic under test.
type Clock func() time.Time

const (
	lockWindow     = 5 * time.Minute
	baseBackoff    = 2 * time.Second
	maxBackoff     = 300 * time.Second
	fetchBatchSize = 1
)

// Queue owns the process-wide registry of per-session worker tasks and the
// Store-backed durable rows they drain.
type Queue struct {
	store     *store.Store
	deliverer Deliverer
	clock     Clock
	logger    *zap.Logger

	mu      sync.Mutex
	workers map[string]context.CancelFunc
	wg      sync.WaitGroup

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New constructs a Queue. clock defaults to time.Now if nil.
func New(st *store.Store, deliverer Deliverer, clock Clock, logger *zap.Logger) *Queue {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		store:      st,
		deliverer:  deliverer,
		clock:      clock,
		logger:     logger,
		workers:    make(map[string]context.CancelFunc),
		shutdownCh: make(chan struct{}),
	}
}

// Enqueue persists a new inbound row and ensures a drain worker is running
// for its session. It returns the new row id, or nil if the row was a
// duplicate of (origin, source_message_id) already accepted.
func (q *Queue) Enqueue(ctx context.Context, p store.EnqueueInboundParams) (*int64, error) {
	now := q.clock()
	id, err := q.store.EnqueueInbound(ctx, now, p)
	if err != nil {
		return nil, fmt.Errorf("enqueue inbound: %w", err)
	}
	if id == nil {
		return nil, nil
	}
	q.ensureWorker(p.SessionID)
	return id, nil
}

// ensureWorker spawns a per-session drain task if one is not already
// running. Spawning is guarded by q.mu so concurrent enqueues spawn at most
// one worker per session.
func (q *Queue) ensureWorker(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, running := q.workers[sessionID]; running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.workers[sessionID] = cancel
	q.wg.Add(1)

	go q.runWorker(ctx, sessionID)
}

// runWorker implements the per-session drain loop from §4.2: fetch one
// pending row, CAS-claim it, deliver it, and on failure hold the worker
// under backoff before retrying — never leapfrogging to a later row.
func (q *Queue) runWorker(ctx context.Context, sessionID string) {
	defer q.wg.Done()
	defer q.retireWorker(sessionID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := q.clock()
		rows, err := q.store.FetchPendingInbound(ctx, sessionID, fetchBatchSize, now, now.Add(-lockWindow))
		if err != nil {
			q.logger.Error("fetch pending inbound failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		if len(rows) == 0 {
			return
		}
		row := rows[0]

		claimNow := q.clock()
		claimed, err := q.store.ClaimInbound(ctx, row.ID, claimNow, claimNow.Add(-lockWindow))
		if err != nil {
			q.logger.Error("claim inbound failed", zap.String("session_id", sessionID), zap.Int64("row_id", row.ID), zap.Error(err))
			return
		}
		if !claimed {
			continue
		}

		if err := q.deliverer.Deliver(ctx, row); err != nil {
			q.handleDeliveryFailure(ctx, row, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoffFor(row.AttemptCount)):
			}
			continue
		}

		if err := q.store.MarkInboundDelivered(ctx, row.ID, q.clock()); err != nil {
			q.logger.Error("mark delivered failed", zap.String("session_id", sessionID), zap.Int64("row_id", row.ID), zap.Error(err))
			return
		}
	}
}

func (q *Queue) handleDeliveryFailure(ctx context.Context, row model.InboundRow, deliveryErr error) {
	if errs.IsKind(deliveryErr, errs.KindPermanentDelivery) {
		if err := q.store.MarkInboundExpired(ctx, row.ID, q.clock(), deliveryErr.Error()); err != nil {
			q.logger.Error("mark expired failed", zap.Int64("row_id", row.ID), zap.Error(err))
		}
		return
	}
	backoff := backoffFor(row.AttemptCount)
	if err := q.store.MarkInboundFailed(ctx, row.ID, q.clock(), backoff, deliveryErr.Error()); err != nil {
		q.logger.Error("mark failed failed", zap.Int64("row_id", row.ID), zap.Error(err))
	}
}

// backoffFor computes the exponential backoff for a row's next attempt,
// capped per §4.2's formula.
func backoffFor(attemptCount int) time.Duration {
	backoff := baseBackoff
	for i := 0; i < attemptCount; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

func (q *Queue) retireWorker(sessionID string) {
	q.mu.Lock()
	delete(q.workers, sessionID)
	q.mu.Unlock()
}

// ExpireSession marks all non-terminal rows for sessionID as expired and
// cancels its worker task.
func (q *Queue) ExpireSession(ctx context.Context, sessionID string) error {
	if _, err := q.store.ExpireSessionInbound(ctx, sessionID, q.clock()); err != nil {
		return fmt.Errorf("expire session inbound: %w", err)
	}

	q.mu.Lock()
	cancel, running := q.workers[sessionID]
	q.mu.Unlock()
	if running {
		cancel()
	}
	return nil
}

// Startup scans for sessions with pending rows and spawns workers for each,
// re-discovering work left over from a prior daemon run (§4.2 startup()).
func (q *Queue) Startup(ctx context.Context) error {
	now := q.clock()
	sessionIDs, err := q.store.ListSessionsWithPendingInbound(ctx, now, now.Add(-lockWindow))
	if err != nil {
		return fmt.Errorf("list sessions with pending inbound: %w", err)
	}
	for _, sessionID := range sessionIDs {
		q.ensureWorker(sessionID)
	}
	return nil
}

// Shutdown cancels every running worker task; their durable rows remain in
// the Store for the next Startup to re-discover.
func (q *Queue) Shutdown() {
	q.shutdownOnce.Do(func() {
		close(q.shutdownCh)
	})

	q.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(q.workers))
	for _, cancel := range q.workers {
		cancels = append(cancels, cancel)
	}
	q.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	q.wg.Wait()
}
