// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	st, err := store.Open(filepath.Join(dir, "teleclaude.db"), store.Options{Clock: func() time.Time { return now }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPipelinePublishInsertsBroadcastOutboxRow(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	p := New(st, func() time.Time { return now }, nil, t.TempDir(), Dedup{}, NotificationProjector{})

	env := model.EventEnvelope{
		EnvelopeID: "env-1",
		Type:       "domain.session.output_update",
		Payload:    json.RawMessage(`{"text":"hi"}`),
		ProducedAt: now,
		ProducerID: "test",
	}
	require.NoError(t, p.Publish(context.Background(), env))

	rows, err := st.FetchPendingOutbox(context.Background(), 10, now, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "env-1", rows[0].EnvelopeID)
	assert.Empty(t, rows[0].TargetAdapter)
}

func TestPipelinePublishProjectsNotification(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	p := New(st, func() time.Time { return now }, nil, t.TempDir(), Dedup{}, NotificationProjector{})

	env := model.EventEnvelope{
		EnvelopeID:     "env-1",
		Type:           "domain.delivery.permanent_failure",
		Payload:        json.RawMessage(`{}`),
		IdempotencyKey: "delivery-fail-sess-1",
		ProducedAt:     now,
		ProducerID:     "test",
	}
	require.NoError(t, p.Publish(context.Background(), env))

	n, err := st.GetNotificationByKey(context.Background(), "delivery-fail-sess-1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, model.AgentStatusNone, n.AgentStatus)
}

func TestDedupDropsAlreadyProjectedEnvelope(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	p := New(st, func() time.Time { return now }, nil, t.TempDir(), Dedup{}, NotificationProjector{})

	env := model.EventEnvelope{
		EnvelopeID:     "env-1",
		Type:           "domain.delivery.permanent_failure",
		Payload:        json.RawMessage(`{}`),
		IdempotencyKey: "dup-key",
		ProducedAt:     now,
		ProducerID:     "test",
	}
	require.NoError(t, p.Publish(context.Background(), env))

	env2 := env
	env2.EnvelopeID = "env-2"
	require.NoError(t, p.Publish(context.Background(), env2))

	rows, err := st.FetchPendingOutbox(context.Background(), 10, now, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "env-1", rows[0].EnvelopeID)
}

func TestPrepareQualityRunnerResolvesNotificationWhenArtifactPasses(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	workspace := t.TempDir()

	artifact := PrepareArtifact{Sections: []PrepareSection{
		{Title: "Goals", Body: "This plan lays out the goals in enough detail to satisfy the rubric's minimum length."},
	}}
	data, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "plan.json"), data, 0o644))

	p := New(st, func() time.Time { return now }, nil, workspace, Dedup{}, NotificationProjector{}, NewPrepareQualityRunner())

	payload, err := json.Marshal(map[string]string{"artifact_path": "plan.json"})
	require.NoError(t, err)

	env := model.EventEnvelope{
		EnvelopeID:     "env-1",
		Type:           "domain.prepare_quality.requested",
		Payload:        payload,
		IdempotencyKey: "prepare-plan-1",
		ProducedAt:     now,
		ProducerID:     "test",
	}
	require.NoError(t, p.Publish(context.Background(), env))

	n, err := st.GetNotificationByKey(context.Background(), "prepare-plan-1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, model.AgentStatusResolved, n.AgentStatus)

	_, err = os.Stat(filepath.Join(workspace, "plan.json.report.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(workspace, ".prepare-quality-state.json"))
	assert.NoError(t, err)
}

func TestPrepareQualityRunnerClaimsNotificationWhenArtifactFails(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	workspace := t.TempDir()

	artifact := PrepareArtifact{Sections: []PrepareSection{{Title: "", Body: ""}}}
	data, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "plan.json"), data, 0o644))

	p := New(st, func() time.Time { return now }, nil, workspace, Dedup{}, NotificationProjector{}, NewPrepareQualityRunner())

	payload, err := json.Marshal(map[string]string{"artifact_path": "plan.json"})
	require.NoError(t, err)

	env := model.EventEnvelope{
		EnvelopeID:     "env-1",
		Type:           "domain.prepare_quality.requested",
		Payload:        payload,
		IdempotencyKey: "prepare-plan-2",
		ProducedAt:     now,
		ProducerID:     "test",
	}
	require.NoError(t, p.Publish(context.Background(), env))

	n, err := st.GetNotificationByKey(context.Background(), "prepare-plan-2")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, model.AgentStatusClaimed, n.AgentStatus)

	fixed, err := os.ReadFile(filepath.Join(workspace, "plan.json"))
	require.NoError(t, err)
	var afterFix PrepareArtifact
	require.NoError(t, json.Unmarshal(fixed, &afterFix))
	assert.Equal(t, "Section 1", afterFix.Sections[0].Title)
}
