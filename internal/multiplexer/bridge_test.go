// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package multiplexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/teleclaude/teleclaude/internal/errs"
)

func newTestBridge(t *testing.T) (*Bridge, *fakeTmuxExecutor) {
	t.Helper()
	fake := newFakeTmuxExecutor()
	b := NewBridge(fake, Options{ShimDir: t.TempDir()})
	return b, fake
}

func TestBridgeCreateSessionInstallsShim(t *testing.T) {
	b, fake := newTestBridge(t)

	require.NoError(t, b.CreateSession(context.Background(), "sess-1", "/srv/app"))

	name := ToMultiplexerSessionName("sess-1")
	require.True(t, fake.sessions[name])

	env := fake.envBySession[name]
	require.Contains(t, env["PATH"], b.shimDir)

	shimPath := filepath.Join(b.shimDir, "git")
	_, err := os.Stat(shimPath)
	require.NoError(t, err, "git shim must be written before the session starts")
}

func TestBridgeCreateSessionRejectsDuplicate(t *testing.T) {
	b, fake := newTestBridge(t)
	name := ToMultiplexerSessionName("sess-1")
	fake.sessions[name] = true

	err := b.CreateSession(context.Background(), "sess-1", "/srv/app")
	require.Error(t, err)
	require.True(t, errs.IsKind(err, errs.KindPermanentDelivery))
}

func TestBridgeKillSessionIsIdempotent(t *testing.T) {
	b, _ := newTestBridge(t)
	require.NoError(t, b.KillSession(context.Background(), "no-such-session"))
}

func TestBridgeSendKeysRequiresExistingSession(t *testing.T) {
	b, _ := newTestBridge(t)
	err := b.SendKeys(context.Background(), "sess-1", "hello")
	require.Error(t, err)
	require.True(t, errs.IsKind(err, errs.KindPermanentDelivery))
}

func TestBridgeSendKeysSucceedsWhenSessionExists(t *testing.T) {
	b, fake := newTestBridge(t)
	fake.sessions[ToMultiplexerSessionName("sess-1")] = true

	require.NoError(t, b.SendKeys(context.Background(), "sess-1", "hello"))
}

func TestBridgePollOutputViaPaneCapture(t *testing.T) {
	b, fake := newTestBridge(t)
	name := ToMultiplexerSessionName("sess-1")
	fake.sessions[name] = true

	fake.capturePaneOut = []byte("hello")
	out, err := b.PollOutput(context.Background(), "sess-1", "")
	require.NoError(t, err)
	require.Equal(t, "hello", string(out))

	fake.capturePaneOut = []byte("hello world")
	out, err = b.PollOutput(context.Background(), "sess-1", "")
	require.NoError(t, err)
	require.Equal(t, " world", string(out), "only the new suffix should be returned")
}

func TestBridgePollOutputViaSessionFileSink(t *testing.T) {
	b, _ := newTestBridge(t)
	sinkPath := filepath.Join(t.TempDir(), "agent-output.log")
	require.NoError(t, os.WriteFile(sinkPath, []byte("first chunk"), 0644))

	out, err := b.PollOutput(context.Background(), "sess-1", sinkPath)
	require.NoError(t, err)
	require.Equal(t, "first chunk", string(out))

	f, err := os.OpenFile(sinkPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(" and more")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err = b.PollOutput(context.Background(), "sess-1", sinkPath)
	require.NoError(t, err)
	require.Equal(t, " and more", string(out))
}

func TestBridgePollOutputRequiresExistingSessionWhenNoSink(t *testing.T) {
	b, _ := newTestBridge(t)
	_, err := b.PollOutput(context.Background(), "sess-1", "")
	require.Error(t, err)
	require.True(t, errs.IsKind(err, errs.KindPermanentDelivery))
}
