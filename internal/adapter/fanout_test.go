// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/store"
)

type fakeAdapter struct {
	name         string
	sendErr      error
	notifyErr    error
	sendCalls    int
	notifyCalls  int
	lastMeta     json.RawMessage
	returnedMeta json.RawMessage
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) SendOutputUpdate(ctx context.Context, sessionID, text string, startedAt, lastChangedAt time.Time, meta json.RawMessage) (json.RawMessage, error) {
	f.sendCalls++
	f.lastMeta = meta
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.returnedMeta != nil {
		return f.returnedMeta, nil
	}
	return json.RawMessage(`{"posted":true}`), nil
}

func (f *fakeAdapter) NotifyObserverUpdate(ctx context.Context, sessionID string, row model.InboundRow) error {
	f.notifyCalls++
	return f.notifyErr
}

func (f *fakeAdapter) PublishToChannel(ctx context.Context, channelID, text string) error {
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	st, err := store.Open(filepath.Join(dir, "teleclaude.db"), store.Options{Clock: func() time.Time { return now }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestSession(t *testing.T, st *store.Store) model.Session {
	t.Helper()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	sess := model.Session{
		ID:                 "sess-1",
		Computer:           "laptop",
		ProjectPath:        "/p",
		MultiplexerSession: "tc-sess-1",
		OriginAdapter:      "telegram",
		SystemRole:         model.SystemRoleWorker,
		HumanRole:          model.HumanRoleMember,
		CreatedAt:          now,
		LastActivityAt:     now,
		State:              model.SessionActive,
		AdapterMetadata:    map[string]json.RawMessage{},
	}
	require.NoError(t, st.CreateSession(context.Background(), sess))
	return sess
}

func TestRegistryNotifyObserverUpdateSkipsOrigin(t *testing.T) {
	st := newTestStore(t)
	sess := newTestSession(t, st)

	reg := New(st, nil)
	origin := &fakeAdapter{name: "telegram"}
	other := &fakeAdapter{name: "discord"}
	reg.Register(origin)
	reg.Register(other)

	err := reg.NotifyObserverUpdate(context.Background(), sess, "telegram", model.InboundRow{Origin: "telegram"})
	require.NoError(t, err)

	assert.Equal(t, 0, origin.notifyCalls)
	assert.Equal(t, 1, other.notifyCalls)
}

func TestRegistryBroadcastPersistsPerAdapterMetadata(t *testing.T) {
	st := newTestStore(t)
	sess := newTestSession(t, st)

	reg := New(st, nil)
	a := &fakeAdapter{name: "telegram", returnedMeta: json.RawMessage(`{"message_id":42}`)}
	reg.Register(a)

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Broadcast(context.Background(), sess, "hello", now, now))
	assert.Equal(t, 1, a.sendCalls)

	persisted, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.JSONEq(t, `{"message_id":42}`, string(persisted.AdapterMetadata["telegram"]))
}

func TestRegistryBroadcastContinuesPastOneAdapterFailure(t *testing.T) {
	st := newTestStore(t)
	sess := newTestSession(t, st)

	reg := New(st, nil)
	failing := &fakeAdapter{name: "telegram", sendErr: assert.AnError}
	ok := &fakeAdapter{name: "discord", returnedMeta: json.RawMessage(`{"message_id":7}`)}
	reg.Register(failing)
	reg.Register(ok)

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	err := reg.Broadcast(context.Background(), sess, "hello", now, now)
	assert.Error(t, err)

	persisted, perr := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, perr)
	require.NotNil(t, persisted)
	assert.JSONEq(t, `{"message_id":7}`, string(persisted.AdapterMetadata["discord"]))
}

func TestRegistryBreakThreadedOutputClearsTrackedMetadata(t *testing.T) {
	st := newTestStore(t)
	sess := newTestSession(t, st)
	sess.AdapterMetadata["telegram"] = json.RawMessage(`{"message_id":1}`)
	require.NoError(t, st.UpdateSessionMetadata(context.Background(), sess.ID, sess.AdapterMetadata))

	reg := New(st, nil)
	reg.Register(&fakeAdapter{name: "telegram"})

	require.NoError(t, reg.BreakThreadedOutput(context.Background(), sess))

	persisted, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	_, ok := persisted.AdapterMetadata["telegram"]
	assert.False(t, ok)
}

func TestRegistrySendToAdapterUnknownNameIsPermanentError(t *testing.T) {
	st := newTestStore(t)
	sess := newTestSession(t, st)
	reg := New(st, nil)

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	err := reg.SendToAdapter(context.Background(), sess, "does-not-exist", "hi", now, now)
	assert.Error(t, err)
}

func TestPeerAdapterIsNoOp(t *testing.T) {
	p := NewPeerAdapter()
	meta, err := p.SendOutputUpdate(context.Background(), "sess-1", "text", time.Now(), time.Now(), json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"x":1}`), meta)
	assert.NoError(t, p.NotifyObserverUpdate(context.Background(), "sess-1", model.InboundRow{}))
}
