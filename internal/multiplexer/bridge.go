// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package multiplexer

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/teleclaude/teleclaude/internal/errs"
)

// Bridge lifecycle-manages one tmux session per TeleClaude session and
// serves the dual-path output primitive described in §4.4/§4.7.
type Bridge struct {
	tmux    TmuxExecutor
	sink    *OutputSink
	shimDir string
	breaker *gobreaker.CircuitBreaker[struct{}]

	mu       sync.Mutex
	shim     *shimDir
	lastPane map[string]string // session id -> last captured pane snapshot
}

// tmuxBreakerSettings trips after a run of consecutive subprocess failures,
// so a wedged tmux server fails fast instead of being retried into the
// ground by every session's inbound worker at once.
func tmuxBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "tmux",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	}
}

// execTmux runs fn through the circuit breaker, returning the breaker's own
// error (gobreaker.ErrOpenState) unwrapped when the circuit is open, so
// callers can still classify it as transient.
func (b *Bridge) execTmux(fn func() error) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Options configures a Bridge.
type Options struct {
	// ShimDir is the directory the forbidden-command wrappers are written
	// to. Defaults to a fixed path under the OS temp directory.
	ShimDir string
}

// NewBridge constructs a Bridge backed by tmux.
func NewBridge(tmux TmuxExecutor, opts Options) *Bridge {
	shimDir := opts.ShimDir
	if shimDir == "" {
		shimDir = "/tmp/teleclaude-shim"
	}
	return &Bridge{
		tmux:     tmux,
		sink:     NewOutputSink(),
		shimDir:  shimDir,
		breaker:  gobreaker.NewCircuitBreaker[struct{}](tmuxBreakerSettings()),
		lastPane: make(map[string]string),
	}
}

// CreateSession reserves a multiplexer session named after sessionID,
// installs the forbidden-command shim on its PATH, and starts it in
// workdir. Returns a PermanentDeliveryError if a session under that name
// already exists — callers are expected to derive sessionID freshly
// (§4.7 create_session).
func (b *Bridge) CreateSession(ctx context.Context, sessionID, workdir string) error {
	name := ToMultiplexerSessionName(sessionID)
	if b.tmux.HasSession(ctx, name) {
		return errs.Permanent(nil, fmt.Sprintf("multiplexer session %s already exists", name))
	}

	shim, err := b.ensureShim()
	if err != nil {
		return errs.Transient(err, "failed to prepare forbidden-command shim")
	}

	env := map[string]string{"PATH": shim.PathPrefix(realPath())}
	if err := b.execTmux(func() error { return b.tmux.NewSession(ctx, name, workdir, env) }); err != nil {
		return errs.Transient(err, "tmux new-session failed")
	}
	return nil
}

func (b *Bridge) ensureShim() (*shimDir, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shim != nil {
		return b.shim, nil
	}
	shim, err := newShimDir(b.shimDir, resolveRealGit())
	if err != nil {
		return nil, err
	}
	b.shim = shim
	return shim, nil
}

func resolveRealGit() string {
	if p, err := exec.LookPath("git"); err == nil {
		return p
	}
	return "/usr/bin/git"
}

func realPath() string {
	return "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
}

// HasSession reports whether the multiplexer session named multiplexerName
// is currently alive. Implements internal/inbound.SessionProbe (§4.3 step
// 2), whose caller already holds the full "tc-"-prefixed name off the
// session record rather than the bare session id the Bridge's other
// methods take.
func (b *Bridge) HasSession(ctx context.Context, multiplexerName string) bool {
	return b.tmux.HasSession(ctx, multiplexerName)
}

// KillSession kills the multiplexer session for sessionID. Idempotent:
// killing an already-absent session is not an error.
func (b *Bridge) KillSession(ctx context.Context, sessionID string) error {
	name := ToMultiplexerSessionName(sessionID)
	b.sink.Forget(sessionID)
	b.mu.Lock()
	delete(b.lastPane, sessionID)
	b.mu.Unlock()

	if !b.tmux.HasSession(ctx, name) {
		return nil
	}
	if err := b.tmux.KillSession(ctx, name); err != nil {
		return errs.Transient(err, "tmux kill-session failed")
	}
	return nil
}

// SendKeys injects text into the session's pane, verifying existence first
// (§4.7 send_keys). A missing session is a PermanentDeliveryError — the
// inbound worker's caller is expected to recreate or pause the session, not
// retry blindly.
func (b *Bridge) SendKeys(ctx context.Context, sessionID, text string) error {
	name := ToMultiplexerSessionName(sessionID)
	if !b.tmux.HasSession(ctx, name) {
		return errs.Permanent(nil, fmt.Sprintf("multiplexer session %s does not exist", name))
	}

	if text == "\r" || text == "\n" {
		if err := b.execTmux(func() error { return b.tmux.SendKeys(ctx, name, "Enter", false) }); err != nil {
			return errs.Transient(err, "tmux send-keys failed")
		}
		return nil
	}

	if err := b.execTmux(func() error { return b.tmux.SendText(ctx, name, text) }); err != nil {
		if err := b.execTmux(func() error { return b.tmux.SendKeys(ctx, name, text, true) }); err != nil {
			return errs.Transient(err, "tmux send-keys failed")
		}
	}
	return nil
}

// Resize resizes the session's window.
func (b *Bridge) Resize(ctx context.Context, sessionID string, cols, rows int) error {
	name := ToMultiplexerSessionName(sessionID)
	if err := b.tmux.ResizeWindow(ctx, name, cols, rows); err != nil {
		return errs.Transient(err, "tmux resize-window failed")
	}
	return nil
}

// ListSessions lists every live multiplexer session name.
func (b *Bridge) ListSessions(ctx context.Context) ([]string, error) {
	names, err := b.tmux.ListSessions(ctx)
	if err != nil {
		return nil, errs.Transient(err, "tmux list-sessions failed")
	}
	return names, nil
}

// PollOutput returns new output produced since the previous call for
// sessionID. When outputSinkPath is non-empty the session-file sink is
// authoritative; otherwise pane capture is diffed against the last
// snapshot. Both paths feed the same downstream send_output_update fanout
// (§4.4) — this is the one place that distinction is made.
func (b *Bridge) PollOutput(ctx context.Context, sessionID, outputSinkPath string) ([]byte, error) {
	if outputSinkPath != "" {
		out, err := b.sink.ReadSince(sessionID, outputSinkPath)
		if err != nil {
			return nil, errs.Transient(err, "output sink read failed")
		}
		return out, nil
	}

	name := ToMultiplexerSessionName(sessionID)
	if !b.tmux.HasSession(ctx, name) {
		return nil, errs.Permanent(nil, fmt.Sprintf("multiplexer session %s does not exist", name))
	}

	pane, err := b.tmux.CapturePane(ctx, name)
	if err != nil {
		return nil, errs.Transient(err, "tmux capture-pane failed")
	}

	b.mu.Lock()
	prev := b.lastPane[sessionID]
	b.lastPane[sessionID] = string(pane)
	b.mu.Unlock()

	return paneDelta(prev, string(pane)), nil
}

// paneDelta returns the suffix of cur that extends prev. When the pane was
// cleared or scrolled past its history limit, cur no longer has prev as a
// prefix; in that case the whole new pane is treated as fresh output rather
// than guessing at an alignment.
func paneDelta(prev, cur string) []byte {
	if prev == "" {
		return []byte(cur)
	}
	if len(cur) >= len(prev) && cur[:len(prev)] == prev {
		return []byte(cur[len(prev):])
	}
	return []byte(cur)
}
