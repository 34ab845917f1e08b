// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teleclaude/teleclaude/internal/model"
)

func TestOutboxEnqueueAndFetch(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	require.NoError(t, s.InsertEnvelope(t.Context(), model.EventEnvelope{
		EnvelopeID: "env-1", Type: "output.update", Payload: json.RawMessage(`{}`),
		ProducedAt: now, ProducerID: "sess-1",
	}))

	id, err := s.InsertOutboxRow(t.Context(), now, "env-1", "", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	require.NotZero(t, id)

	rows, err := s.FetchPendingOutbox(t.Context(), 10, now, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "env-1", rows[0].EnvelopeID)
	require.Empty(t, rows[0].TargetAdapter, "empty target_adapter means broadcast")
}

func TestOutboxClaimExclusiveAndReclaim(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	require.NoError(t, s.InsertEnvelope(t.Context(), model.EventEnvelope{
		EnvelopeID: "env-1", Type: "output.update", Payload: json.RawMessage(`{}`), ProducedAt: now, ProducerID: "sess-1",
	}))
	id, err := s.InsertOutboxRow(t.Context(), now, "env-1", "telegram", json.RawMessage(`{}`))
	require.NoError(t, err)

	lockCutoff := now.Add(-5 * time.Minute)
	ok, err := s.ClaimOutbox(t.Context(), id, now, lockCutoff)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ClaimOutbox(t.Context(), id, now, lockCutoff)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOutboxMarkDeliveredIsTerminal(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	require.NoError(t, s.InsertEnvelope(t.Context(), model.EventEnvelope{
		EnvelopeID: "env-1", Type: "output.update", Payload: json.RawMessage(`{}`), ProducedAt: now, ProducerID: "sess-1",
	}))
	id, err := s.InsertOutboxRow(t.Context(), now, "env-1", "telegram", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, s.MarkOutboxDelivered(t.Context(), id, now))
	require.NoError(t, s.MarkOutboxFailed(t.Context(), id, now, time.Second, "boom"))

	rows, err := s.FetchPendingOutbox(t.Context(), 10, now.Add(time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, rows, "a delivered row must never reappear as pending")
}

func TestCleanupOutboxDeletesOnlyTerminalRows(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	require.NoError(t, s.InsertEnvelope(t.Context(), model.EventEnvelope{
		EnvelopeID: "env-1", Type: "output.update", Payload: json.RawMessage(`{}`), ProducedAt: now, ProducerID: "sess-1",
	}))
	delivered, err := s.InsertOutboxRow(t.Context(), now, "env-1", "telegram", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, s.MarkOutboxDelivered(t.Context(), delivered, now))

	pending, err := s.InsertOutboxRow(t.Context(), now, "env-1", "discord", json.RawMessage(`{}`))
	require.NoError(t, err)

	n, err := s.CleanupOutbox(t.Context(), now.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rows, err := s.FetchPendingOutbox(t.Context(), 10, now, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, pending, rows[0].ID)
}
