// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/control/handlers"
	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/multiplexer"
	"github.com/teleclaude/teleclaude/internal/session"
	"github.com/teleclaude/teleclaude/internal/store"
)

// sessionService composes the session registry with the multiplexer bridge
// and the directory tables, satisfying handlers.SessionRegistry. Registry.Create
// deliberately stops at persisting the "initializing" row — it documents
// itself as expecting "the caller" to create the multiplexer session and
// advance the state; this is that caller (§4.7 create_session).
type sessionService struct {
	registry *session.Registry
	bridge   *multiplexer.Bridge
	store    *store.Store
	clock    func() time.Time
	logger   *zap.Logger
}

func newSessionService(registry *session.Registry, bridge *multiplexer.Bridge, st *store.Store, clock func() time.Time, logger *zap.Logger) *sessionService {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sessionService{registry: registry, bridge: bridge, store: st, clock: clock, logger: logger}
}

// Create reserves the session record, registers its computer/project in the
// directory tables, stands up the multiplexer pane, and transitions the
// session to active. A failure after the record is persisted leaves the
// session in "initializing" rather than rolling the row back — the same
// row a future poll or control-plane retry can still observe and act on.
func (s *sessionService) Create(ctx context.Context, p handlers.SessionCreateParams) (*model.Session, error) {
	now := s.clock()
	if err := s.store.UpsertComputer(ctx, model.Computer{Name: p.Computer, CreatedAt: now}); err != nil {
		return nil, err
	}
	if err := s.store.UpsertProject(ctx, model.Project{Path: p.ProjectPath, Name: filepath.Base(p.ProjectPath), CreatedAt: now}); err != nil {
		return nil, err
	}

	sess, err := s.registry.Create(ctx, session.CreateParams{
		Computer:       p.Computer,
		ProjectPath:    p.ProjectPath,
		Title:          p.Title,
		SystemRole:     p.SystemRole,
		HumanRole:      p.HumanRole,
		OriginAdapter:  p.OriginAdapter,
		OutputSinkPath: p.OutputSinkPath,
	})
	if err != nil {
		return nil, err
	}

	if err := s.bridge.CreateSession(ctx, sess.ID, p.ProjectPath); err != nil {
		s.logger.Error("multiplexer session create failed", zap.String("session_id", sess.ID), zap.Error(err))
		return sess, err
	}

	if err := s.registry.Transition(ctx, sess.ID, model.SessionActive); err != nil {
		return sess, err
	}
	sess.State = model.SessionActive
	return sess, nil
}

func (s *sessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	return s.registry.Get(ctx, id)
}

func (s *sessionService) List(ctx context.Context) ([]model.Session, error) {
	return s.registry.List(ctx)
}

func (s *sessionService) Transition(ctx context.Context, id string, state model.SessionState) error {
	return s.registry.Transition(ctx, id, state)
}

// inboundEnqueuer adapts internal/inbound.Queue to handlers.InboundEnqueuer,
// filling in the richer EnqueueInboundParams the control plane's flat
// (sessionID, origin, content) calls never need to specify themselves.
type inboundEnqueuer struct {
	queue inboundQueue
}

// inboundQueue is the subset of internal/inbound.Queue the control plane
// wrapper calls. Declared locally so this file does not need to know the
// queue package's full surface.
type inboundQueue interface {
	Enqueue(ctx context.Context, p store.EnqueueInboundParams) (*int64, error)
}

func newInboundEnqueuer(q inboundQueue) *inboundEnqueuer {
	return &inboundEnqueuer{queue: q}
}

func (e *inboundEnqueuer) Enqueue(ctx context.Context, sessionID, origin, content string) error {
	_, err := e.queue.Enqueue(ctx, store.EnqueueInboundParams{
		SessionID:   sessionID,
		Origin:      origin,
		MessageType: model.MessageText,
		Content:     content,
	})
	return err
}
