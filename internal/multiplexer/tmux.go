// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package multiplexer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// RealTmuxExecutor executes real tmux commands.
type RealTmuxExecutor struct{}

// NewRealTmuxExecutor creates a new tmux executor.
func NewRealTmuxExecutor() *RealTmuxExecutor {
	return &RealTmuxExecutor{}
}

// HasSession checks if a session exists.
func (e *RealTmuxExecutor) HasSession(ctx context.Context, session string) bool {
	cmd := exec.CommandContext(ctx, "tmux", "has-session", "-t", session)
	return cmd.Run() == nil
}

// ListSessions lists all tmux sessions.
func (e *RealTmuxExecutor) ListSessions(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "tmux", "list-sessions", "-F", "#{session_name}")
	output, err := cmd.Output()
	if err != nil {
		if strings.Contains(err.Error(), "no server running") {
			return nil, nil
		}
		return nil, err
	}

	var sessions []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			sessions = append(sessions, line)
		}
	}
	return sessions, nil
}

// NewSession creates a detached tmux session with the given environment
// overlay applied via `-e` (tmux 3.0+), so the forbidden-command shim
// directory lands on PATH before the login shell starts.
func (e *RealTmuxExecutor) NewSession(ctx context.Context, session, workdir string, env map[string]string) error {
	args := []string{"new-session", "-d", "-s", session}
	if workdir != "" {
		args = append(args, "-c", workdir)
	}
	for k, v := range env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Env = filterTMUXEnv(os.Environ())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tmux new-session failed: %s: %v", stderr.String(), err)
	}
	return nil
}

// KillSession kills a tmux session.
func (e *RealTmuxExecutor) KillSession(ctx context.Context, session string) error {
	cmd := exec.CommandContext(ctx, "tmux", "kill-session", "-t", session)
	return cmd.Run()
}

// CapturePane captures the pane content, including scrollback.
func (e *RealTmuxExecutor) CapturePane(ctx context.Context, session string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "tmux", "capture-pane", "-t", session, "-p", "-e", "-S", "-")
	return cmd.Output()
}

// SendKeys sends keys to a pane.
func (e *RealTmuxExecutor) SendKeys(ctx context.Context, session string, keys string, literal bool) error {
	args := []string{"send-keys", "-t", session}
	if literal {
		args = append(args, "-l")
	}
	args = append(args, keys)

	cmd := exec.CommandContext(ctx, "tmux", args...)
	return cmd.Run()
}

// SendText sends text via paste-buffer (handles special characters).
func (e *RealTmuxExecutor) SendText(ctx context.Context, session string, text string) error {
	loadCmd := exec.CommandContext(ctx, "tmux", "load-buffer", "-")
	loadCmd.Stdin = strings.NewReader(text)
	if err := loadCmd.Run(); err != nil {
		return err
	}

	pasteCmd := exec.CommandContext(ctx, "tmux", "paste-buffer", "-d", "-t", session)
	return pasteCmd.Run()
}

// ResizeWindow resizes a session's active window.
func (e *RealTmuxExecutor) ResizeWindow(ctx context.Context, session string, cols, rows int) error {
	cmd := exec.CommandContext(ctx, "tmux", "resize-window", "-t", session,
		"-x", strconv.Itoa(cols), "-y", strconv.Itoa(rows))
	return cmd.Run()
}

// filterTMUXEnv filters out the TMUX environment variable so a new session
// is never accidentally nested inside the daemon's own tmux client, if any.
func filterTMUXEnv(env []string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "TMUX=") {
			result = append(result, e)
		}
	}
	return result
}
