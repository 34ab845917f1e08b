// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session implements the Session Registry: the in-memory,
// Store-backed directory of live sessions, and the identity cross-check the
// control plane runs before any business logic (§4.7, §8 invariant 5).
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/teleclaude/teleclaude/internal/errs"
	"github.com/teleclaude/teleclaude/internal/idgen"
	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/store"
)

// Clock supplies the current time, deterministic under test.
type Clock func() time.Time

// Registry is the single source of truth for session existence and
// identity cross-checks. It caches Store-backed sessions in memory keyed by
// id, refreshing lazily; the Store itself remains authoritative across
// daemon restarts.
type Registry struct {
	store *store.Store
	clock Clock
	ids   *idgen.Generator

	mu   sync.RWMutex
	byID map[string]model.Session
}

// New constructs a Registry. clock defaults to time.Now if nil.
func New(st *store.Store, clock Clock) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		store: st,
		clock: clock,
		ids:   idgen.New(clock),
		byID:  make(map[string]model.Session),
	}
}

// NewSessionID generates a new, unforgeable, time-sortable session
// identifier. ULIDs double as the multiplexer session name's uniqueness
// anchor (§4.7).
func (r *Registry) NewSessionID() (string, error) {
	return r.ids.Next()
}

// CreateParams names the fields needed to register a new session.
type CreateParams struct {
	Computer      string
	ProjectPath   string
	Title         string
	SystemRole    model.SystemRole
	HumanRole     model.HumanRole
	OriginAdapter string
	OutputSinkPath string
}

// Create reserves a session id, derives its multiplexer session name, and
// persists the record in state "initializing" (§4.7 create_session). The
// multiplexer session itself is created by the caller (the inbound/control
// layer), which owns sequencing with the Bridge.
func (r *Registry) Create(ctx context.Context, p CreateParams) (*model.Session, error) {
	id, err := r.NewSessionID()
	if err != nil {
		return nil, errs.Contract(err, "failed to allocate session id")
	}

	now := r.clock()
	sess := model.Session{
		ID:                 id,
		Computer:           p.Computer,
		ProjectPath:        p.ProjectPath,
		MultiplexerSession: multiplexerSessionName(id),
		OriginAdapter:      p.OriginAdapter,
		Title:              p.Title,
		SystemRole:         p.SystemRole,
		HumanRole:          p.HumanRole,
		CreatedAt:          now,
		LastActivityAt:     now,
		State:              model.SessionInitializing,
		AdapterMetadata:    make(map[string]json.RawMessage),
		OutputSinkPath:     p.OutputSinkPath,
	}

	if err := r.store.CreateSession(ctx, sess); err != nil {
		return nil, errs.Transient(err, "failed to persist session")
	}

	r.mu.Lock()
	r.byID[id] = sess
	r.mu.Unlock()

	return &sess, nil
}

// multiplexerSessionName derives the unforgeable multiplexer session name
// from a session id. Kept independent of internal/multiplexer's own naming
// helper so the session package has no import-cycle dependency on it; both
// apply the same "tc-" convention.
func multiplexerSessionName(sessionID string) string {
	return "tc-" + sessionID
}

// Get returns a session by id, refreshing from the Store on a cache miss.
func (r *Registry) Get(ctx context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	sess, ok := r.byID[id]
	r.mu.RUnlock()
	if ok {
		return &sess, nil
	}

	stored, err := r.store.GetSession(ctx, id)
	if err != nil {
		return nil, errs.Transient(err, "failed to load session")
	}
	if stored == nil {
		return nil, nil
	}

	r.mu.Lock()
	r.byID[id] = *stored
	r.mu.Unlock()
	return stored, nil
}

// List returns every known session, refreshed from the Store.
func (r *Registry) List(ctx context.Context) ([]model.Session, error) {
	sessions, err := r.store.ListSessions(ctx)
	if err != nil {
		return nil, errs.Transient(err, "failed to list sessions")
	}

	r.mu.Lock()
	for _, s := range sessions {
		r.byID[s.ID] = s
	}
	r.mu.Unlock()
	return sessions, nil
}

// Transition moves a session to a new lifecycle state.
func (r *Registry) Transition(ctx context.Context, id string, state model.SessionState) error {
	now := r.clock()
	if err := r.store.UpdateSessionState(ctx, id, state, now); err != nil {
		return errs.Transient(err, "failed to update session state")
	}

	r.mu.Lock()
	if sess, ok := r.byID[id]; ok {
		sess.State = state
		sess.LastActivityAt = now
		r.byID[id] = sess
	}
	r.mu.Unlock()
	return nil
}

// Touch bumps a session's last-activity timestamp without changing state.
func (r *Registry) Touch(ctx context.Context, id string) error {
	now := r.clock()
	if err := r.store.TouchSession(ctx, id, now); err != nil {
		return errs.Transient(err, "failed to touch session")
	}

	r.mu.Lock()
	if sess, ok := r.byID[id]; ok {
		sess.LastActivityAt = now
		r.byID[id] = sess
	}
	r.mu.Unlock()
	return nil
}

// Forget drops a closed session from the in-memory cache; the Store record
// is retained for audit (closed sessions are never deleted, only
// transitioned).
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

// CheckIdentity implements the dual-factor identity cross-check required
// before any business logic runs (§8 invariant 5): when the caller claims
// to be the agent hosted in callerSessionID, its multiplexer session name
// must match the one this registry created for that id. A mismatch, or a
// reference to an unknown session, is always an IdentityError — never
// retried, always 403.
func (r *Registry) CheckIdentity(ctx context.Context, callerSessionID, multiplexerSession string) (*model.Session, error) {
	if callerSessionID == "" {
		return nil, errs.Identity("missing Caller-Session-Id")
	}

	sess, err := r.Get(ctx, callerSessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errs.Identity("unknown session: " + callerSessionID)
	}

	if multiplexerSession != "" && multiplexerSession != sess.MultiplexerSession {
		return nil, errs.Identity("multiplexer session mismatch for " + callerSessionID)
	}

	return sess, nil
}
