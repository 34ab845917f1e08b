// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package multiplexer bridges Session Registry lifecycle operations to the
// host terminal multiplexer (tmux): one multiplexer session per TeleClaude
// session, identified by an unforgeable name derived from the session id.
package multiplexer

import "context"

// TmuxExecutor executes tmux commands. Isolated behind an interface so the
// bridge can be driven by a fake in tests without a real tmux binary.
type TmuxExecutor interface {
	// HasSession checks if a session exists.
	HasSession(ctx context.Context, session string) bool
	// ListSessions lists all tmux sessions.
	ListSessions(ctx context.Context) ([]string, error)
	// NewSession creates a new detached tmux session with the given working
	// directory and environment overlay (used to install the forbidden-
	// command shell wrapper on PATH).
	NewSession(ctx context.Context, session, workdir string, env map[string]string) error
	// KillSession kills a tmux session.
	KillSession(ctx context.Context, session string) error
	// CapturePane captures the current pane content.
	CapturePane(ctx context.Context, session string) ([]byte, error)
	// SendKeys sends keys to a pane. literal disables tmux key-name parsing.
	SendKeys(ctx context.Context, session string, keys string, literal bool) error
	// SendText sends text via paste-buffer (handles special characters).
	SendText(ctx context.Context, session string, text string) error
	// ResizeWindow resizes a session's window.
	ResizeWindow(ctx context.Context, session string, cols, rows int) error
}

// ToMultiplexerSessionName derives the tmux session name for a TeleClaude
// session id. The "tc-" prefix plus the id itself is unforgeable by an
// adapter-originated request, since session ids are server-generated ULIDs
// (§4.7).
func ToMultiplexerSessionName(sessionID string) string {
	return "tc-" + sanitizeForTmux(sessionID)
}

// sanitizeForTmux replaces characters tmux treats specially in session
// names.
func sanitizeForTmux(s string) string {
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == ':' {
			result = append(result, '_')
		} else {
			result = append(result, s[i])
		}
	}
	return string(result)
}
