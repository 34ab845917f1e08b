// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package inbound

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/errs"
	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/session"
)

// MultiplexerBridge is the subset of internal/multiplexer.Bridge the
// delivery primitive needs. Narrowed to an interface here so this package
// never imports the concrete multiplexer package, avoiding a dependency
// cycle with higher-level wiring and keeping tests fast.
type MultiplexerBridge interface {
	CreateSession(ctx context.Context, sessionID, workdir string) error
	SendKeys(ctx context.Context, sessionID, text string) error
}

// SessionProbe checks whether a multiplexer session still exists, without
// pulling in the full Bridge surface.
type SessionProbe interface {
	HasSession(ctx context.Context, sessionID string) bool
}

// Fanout broadcasts an observer update to every adapter other than the
// originating one (§4.3 step 5). Implemented by the adapter package's
// registry.
type Fanout interface {
	NotifyObserverUpdate(ctx context.Context, sess model.Session, originAdapter string, row model.InboundRow) error
	BreakThreadedOutput(ctx context.Context, sess model.Session) error
}

// OutputObserver starts the output-polling loop for a session once its
// first inbound message has been delivered (§4.3 step 7). Implemented by
// the outbound package.
type OutputObserver interface {
	EnsureStarted(ctx context.Context, sess model.Session) error
}

const sessionInitGateTimeout = 15 * time.Second

// Delivery implements the deliver_inbound primitive (§4.3): the single code
// path every inbound row passes through regardless of session kind.
type Delivery struct {
	registry *session.Registry
	bridge   MultiplexerBridge
	probe    SessionProbe
	fanout   Fanout
	observer OutputObserver
	clock    Clock
	logger   *zap.Logger
}

// NewDelivery constructs a Delivery. clock defaults to time.Now if nil.
func NewDelivery(registry *session.Registry, bridge MultiplexerBridge, probe SessionProbe, fanout Fanout, observer OutputObserver, clock Clock, logger *zap.Logger) *Delivery {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Delivery{
		registry: registry,
		bridge:   bridge,
		probe:    probe,
		fanout:   fanout,
		observer: observer,
		clock:    clock,
		logger:   logger,
	}
}

// Deliver runs the seven numbered steps of §4.3 for one claimed row.
func (d *Delivery) Deliver(ctx context.Context, row model.InboundRow) error {
	sess, err := d.gateWaitForSession(ctx, row.SessionID)
	if err != nil {
		return err
	}

	if err := d.ensureMultiplexerAlive(ctx, sess); err != nil {
		return err
	}

	if err := d.fanout.BreakThreadedOutput(ctx, *sess); err != nil {
		d.logger.Warn("break threaded output failed", zap.String("session_id", sess.ID), zap.Error(err))
	}

	if err := d.registry.Touch(ctx, sess.ID); err != nil {
		return errs.Transient(err, "failed to update session metadata")
	}

	if err := d.fanout.NotifyObserverUpdate(ctx, *sess, row.Origin, row); err != nil {
		d.logger.Warn("observer fanout failed", zap.String("session_id", sess.ID), zap.Error(err))
	}

	text := bracketedPaste(row.Content)
	if err := d.bridge.SendKeys(ctx, sess.ID, text); err != nil {
		return err
	}

	if err := d.registry.Touch(ctx, sess.ID); err != nil {
		d.logger.Warn("touch after delivery failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	if err := d.observer.EnsureStarted(ctx, *sess); err != nil {
		d.logger.Warn("ensure output observer failed", zap.String("session_id", sess.ID), zap.Error(err))
	}

	return nil
}

// gateWaitForSession loads the session record, gate-waiting up to 15s while
// its state is "initializing" (§4.3 step 1).
func (d *Delivery) gateWaitForSession(ctx context.Context, sessionID string) (*model.Session, error) {
	deadline := d.clock().Add(sessionInitGateTimeout)

	for {
		sess, err := d.registry.Get(ctx, sessionID)
		if err != nil {
			return nil, errs.Transient(err, "failed to load session")
		}
		if sess == nil {
			return nil, errs.Permanent(nil, fmt.Sprintf("session %s does not exist", sessionID))
		}
		if sess.State != model.SessionInitializing {
			return sess, nil
		}
		if d.clock().After(deadline) {
			return nil, errs.Transient(nil, fmt.Sprintf("session %s still initializing after %s", sessionID, sessionInitGateTimeout))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// ensureMultiplexerAlive verifies the multiplexer session exists; if
// missing and the session's system role marks it headless, it is
// re-created (§4.3 step 2, §4.7 failure semantics). A missing session that
// is not headless is marked paused and reported as a permanent delivery
// failure, which the queue expires without retry.
func (d *Delivery) ensureMultiplexerAlive(ctx context.Context, sess *model.Session) error {
	if d.probe.HasSession(ctx, sess.MultiplexerSession) {
		return nil
	}

	if !sess.Headless {
		if err := d.registry.Transition(ctx, sess.ID, model.SessionPaused); err != nil {
			d.logger.Warn("pause session failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
		return errs.Permanent(nil, fmt.Sprintf("multiplexer session %s missing and not headless", sess.MultiplexerSession))
	}

	if err := d.bridge.CreateSession(ctx, sess.ID, sess.ProjectPath); err != nil {
		return errs.Transient(err, "failed to recreate headless multiplexer session")
	}
	return nil
}

// bracketedPaste wraps text in bracketed-paste delimiters so pane-attached
// shells and editors treat it as a single paste rather than individual
// keystrokes (§4.3 step 6).
func bracketedPaste(text string) string {
	return "\x1b[200~" + text + "\x1b[201~"
}
