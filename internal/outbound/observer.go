// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package outbound

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/idgen"
	"github.com/teleclaude/teleclaude/internal/model"
)

// PollSource returns new output bytes produced since the previous call for
// a session. Implemented by internal/multiplexer.Bridge, which already
// picks the dual path §4.4 describes (session-file sink vs. pane capture)
// behind this one method.
type PollSource interface {
	PollOutput(ctx context.Context, sessionID, outputSinkPath string) ([]byte, error)
}

// Publisher runs a constructed envelope through the event pipeline.
// Implemented by internal/pipeline.Pipeline.
type Publisher interface {
	Publish(ctx context.Context, env model.EventEnvelope, targetAdapters ...string) error
}

const (
	observerPollInterval = 750 * time.Millisecond
	// quietPeriod bounds how long the observer waits for output to stop
	// changing before publishing an update — batches a burst of agent
	// output into one edit instead of one per poll tick.
	quietPeriod = 2 * time.Second
)

// Observer implements inbound.OutputObserver: one polling loop per session,
// started on first delivered inbound message and running until the session
// closes (§4.3 step 7, §4.4).
type Observer struct {
	source    PollSource
	publisher Publisher
	ids       *idgen.Generator
	clock     func() time.Time
	logger    *zap.Logger
	producer  string

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewObserver constructs an Observer. clock defaults to time.Now if nil. producer
// names this daemon instance as the EventEnvelope.ProducerID for envelopes
// it mints.
func NewObserver(source PollSource, publisher Publisher, clock func() time.Time, logger *zap.Logger, producer string) *Observer {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		source:    source,
		publisher: publisher,
		ids:       idgen.New(clock),
		clock:     clock,
		logger:    logger,
		producer:  producer,
		running:   make(map[string]context.CancelFunc),
	}
}

// EnsureStarted launches the polling loop for sess if one is not already
// running. Idempotent — safe to call on every delivered inbound message.
func (o *Observer) EnsureStarted(ctx context.Context, sess model.Session) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.running[sess.ID]; running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	o.running[sess.ID] = cancel
	o.wg.Add(1)
	go o.poll(loopCtx, sess)
	return nil
}

// Stop cancels the polling loop for a closed session, if running.
func (o *Observer) Stop(sessionID string) {
	o.mu.Lock()
	cancel, running := o.running[sessionID]
	if running {
		delete(o.running, sessionID)
	}
	o.mu.Unlock()
	if running {
		cancel()
	}
}

// Shutdown stops every running polling loop and waits for them to exit.
func (o *Observer) Shutdown() {
	o.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(o.running))
	for id, cancel := range o.running {
		cancels = append(cancels, cancel)
		delete(o.running, id)
	}
	o.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	o.wg.Wait()
}

func (o *Observer) poll(ctx context.Context, sess model.Session) {
	defer o.wg.Done()
	defer o.retire(sess.ID)

	ticker := time.NewTicker(observerPollInterval)
	defer ticker.Stop()

	var (
		buf       []byte
		startedAt time.Time
		lastSeen  time.Time
	)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := o.publish(ctx, sess.ID, string(buf), startedAt, lastSeen); err != nil {
			o.logger.Warn("publish output update failed", zap.String("session_id", sess.ID), zap.Error(err))
			return
		}
		buf = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
		}

		out, err := o.source.PollOutput(ctx, sess.ID, sess.OutputSinkPath)
		if err != nil {
			o.logger.Warn("poll output failed", zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}

		now := o.clock()
		if len(out) > 0 {
			if len(buf) == 0 {
				startedAt = now
			}
			buf = append(buf, out...)
			lastSeen = now
			continue
		}

		if len(buf) > 0 && now.Sub(lastSeen) >= quietPeriod {
			flush()
		}
	}
}

func (o *Observer) retire(sessionID string) {
	o.mu.Lock()
	delete(o.running, sessionID)
	o.mu.Unlock()
}

func (o *Observer) publish(ctx context.Context, sessionID, text string, startedAt, lastChangedAt time.Time) error {
	id, err := o.ids.Next()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(outputUpdatePayload{
		SessionID:     sessionID,
		Text:          text,
		StartedAt:     startedAt,
		LastChangedAt: lastChangedAt,
	})
	if err != nil {
		return err
	}

	env := model.EventEnvelope{
		EnvelopeID: id,
		Type:       "domain.session.output_update",
		Payload:    payload,
		GroupKey:   sessionID,
		ProducedAt: o.clock(),
		ProducerID: o.producer,
	}
	return o.publisher.Publish(ctx, env)
}
