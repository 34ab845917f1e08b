// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package outbound

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/model"
)

type fakePollSource struct {
	mu     sync.Mutex
	chunks []string
}

func (f *fakePollSource) PollOutput(ctx context.Context, sessionID, outputSinkPath string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chunks) == 0 {
		return nil, nil
	}
	next := f.chunks[0]
	f.chunks = f.chunks[1:]
	return []byte(next), nil
}

func (f *fakePollSource) push(chunk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunk)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []model.EventEnvelope
}

func (f *fakePublisher) Publish(ctx context.Context, env model.EventEnvelope, targetAdapters ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, env)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func TestObserverFlushesOnQuietPeriod(t *testing.T) {
	source := &fakePollSource{}
	publisher := &fakePublisher{}

	var now time.Time
	var mu sync.Mutex
	setNow := func(t time.Time) {
		mu.Lock()
		now = t
		mu.Unlock()
	}
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	setNow(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))

	obs := NewObserver(source, publisher, clock, nil, "test-daemon")
	source.push("hello ")

	ctx := context.Background()
	require.NoError(t, obs.EnsureStarted(ctx, model.Session{ID: "sess-1"}))
	t.Cleanup(obs.Shutdown)

	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.chunks) == 0
	}, time.Second, 10*time.Millisecond)

	setNow(now.Add(quietPeriod + time.Second))
	source.push("")

	require.Eventually(t, func() bool { return publisher.count() == 1 }, 3*time.Second, 20*time.Millisecond)

	publisher.mu.Lock()
	env := publisher.published[0]
	publisher.mu.Unlock()
	assert.Equal(t, "domain.session.output_update", env.Type)
	assert.Equal(t, "sess-1", env.GroupKey)
	assert.Equal(t, "test-daemon", env.ProducerID)
}

func TestObserverEnsureStartedIsIdempotent(t *testing.T) {
	source := &fakePollSource{}
	publisher := &fakePublisher{}
	obs := NewObserver(source, publisher, nil, nil, "test-daemon")

	ctx := context.Background()
	sess := model.Session{ID: "sess-1"}
	require.NoError(t, obs.EnsureStarted(ctx, sess))
	require.NoError(t, obs.EnsureStarted(ctx, sess))

	obs.mu.Lock()
	running := len(obs.running)
	obs.mu.Unlock()
	assert.Equal(t, 1, running)

	obs.Shutdown()
}
