// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teleclaude/teleclaude/internal/model"
)

func TestEnqueueInboundDeduplicates(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	params := EnqueueInboundParams{
		SessionID:       "sess-1",
		Origin:          "telegram",
		MessageType:     model.MessageText,
		Content:         "hello",
		SourceMessageID: "tg-42",
	}

	id1, err := s.EnqueueInbound(t.Context(), now, params)
	require.NoError(t, err)
	require.NotNil(t, id1)

	id2, err := s.EnqueueInbound(t.Context(), now, params)
	require.NoError(t, err)
	require.Nil(t, id2)
}

func TestEnqueueInboundWithoutSourceMessageIDNeverDedupes(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	params := EnqueueInboundParams{SessionID: "sess-1", Origin: "webui", MessageType: model.MessageText, Content: "hi"}
	id1, err := s.EnqueueInbound(t.Context(), now, params)
	require.NoError(t, err)
	require.NotNil(t, id1)

	id2, err := s.EnqueueInbound(t.Context(), now, params)
	require.NoError(t, err)
	require.NotNil(t, id2)
	require.NotEqual(t, *id1, *id2)
}

func TestFetchPendingInboundIsFIFO(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	for i := 0; i < 3; i++ {
		_, err := s.EnqueueInbound(t.Context(), now, EnqueueInboundParams{
			SessionID: "sess-1", Origin: "webui", MessageType: model.MessageText, Content: "m",
		})
		require.NoError(t, err)
	}

	rows, err := s.FetchPendingInbound(t.Context(), "sess-1", 10, now, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Less(t, rows[0].ID, rows[1].ID)
	require.Less(t, rows[1].ID, rows[2].ID)
}

func TestClaimInboundIsExclusive(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	id, err := s.EnqueueInbound(t.Context(), now, EnqueueInboundParams{
		SessionID: "sess-1", Origin: "webui", MessageType: model.MessageText, Content: "m",
	})
	require.NoError(t, err)

	lockCutoff := now.Add(-5 * time.Minute)
	ok, err := s.ClaimInbound(t.Context(), *id, now, lockCutoff)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ClaimInbound(t.Context(), *id, now, lockCutoff)
	require.NoError(t, err)
	require.False(t, ok, "a second claim before the lock expires must fail")
}

func TestClaimInboundReclaimsAfterCutoff(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	id, err := s.EnqueueInbound(t.Context(), now, EnqueueInboundParams{
		SessionID: "sess-1", Origin: "webui", MessageType: model.MessageText, Content: "m",
	})
	require.NoError(t, err)

	ok, err := s.ClaimInbound(t.Context(), *id, now, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	later := now.Add(10 * time.Minute)
	ok, err = s.ClaimInbound(t.Context(), *id, later, later.Add(-5*time.Minute))
	require.NoError(t, err)
	require.True(t, ok, "a stale lock past cutoff must be reclaimable")
}

func TestMarkInboundDeliveredIsTerminal(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	id, err := s.EnqueueInbound(t.Context(), now, EnqueueInboundParams{
		SessionID: "sess-1", Origin: "webui", MessageType: model.MessageText, Content: "m",
	})
	require.NoError(t, err)

	require.NoError(t, s.MarkInboundDelivered(t.Context(), *id, now))

	row, err := s.GetInbound(t.Context(), *id)
	require.NoError(t, err)
	require.Equal(t, model.InboundDelivered, row.Status)

	// A later failure must not resurrect a terminal row.
	require.NoError(t, s.MarkInboundFailed(t.Context(), *id, now, time.Second, "boom"))
	row, err = s.GetInbound(t.Context(), *id)
	require.NoError(t, err)
	require.Equal(t, model.InboundDelivered, row.Status)
}

func TestMarkInboundFailedComputesBackoff(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	id, err := s.EnqueueInbound(t.Context(), now, EnqueueInboundParams{
		SessionID: "sess-1", Origin: "webui", MessageType: model.MessageText, Content: "m",
	})
	require.NoError(t, err)

	require.NoError(t, s.MarkInboundFailed(t.Context(), *id, now, 30*time.Second, "transient"))

	row, err := s.GetInbound(t.Context(), *id)
	require.NoError(t, err)
	require.Equal(t, model.InboundFailed, row.Status)
	require.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.NextRetryAt)
	require.Equal(t, now.Add(30*time.Second), *row.NextRetryAt)
}

func TestExpireSessionInboundBulkExpires(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	for i := 0; i < 2; i++ {
		_, err := s.EnqueueInbound(t.Context(), now, EnqueueInboundParams{
			SessionID: "sess-1", Origin: "webui", MessageType: model.MessageText, Content: "m",
		})
		require.NoError(t, err)
	}

	n, err := s.ExpireSessionInbound(t.Context(), "sess-1", now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	rows, err := s.FetchPendingInbound(t.Context(), "sess-1", 10, now, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestCleanupInboundDeletesOnlyTerminalRows(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	id, err := s.EnqueueInbound(t.Context(), now, EnqueueInboundParams{
		SessionID: "sess-1", Origin: "webui", MessageType: model.MessageText, Content: "m",
	})
	require.NoError(t, err)
	require.NoError(t, s.MarkInboundDelivered(t.Context(), *id, now))

	live, err := s.EnqueueInbound(t.Context(), now, EnqueueInboundParams{
		SessionID: "sess-1", Origin: "webui", MessageType: model.MessageText, Content: "still pending",
	})
	require.NoError(t, err)

	n, err := s.CleanupInbound(t.Context(), now.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	row, err := s.GetInbound(t.Context(), *live)
	require.NoError(t, err)
	require.NotNil(t, row)
}
