// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package multiplexer

import (
	"fmt"
	"os"
	"sync"
)

// OutputSink reads the new bytes an agent process has appended to its own
// session-file since the last poll — the alternative leg of the dual-path
// output primitive in §4.4, used whenever model.Session.OutputSinkPath is
// set. It never truncates or rewrites the file; the agent owns it.
type OutputSink struct {
	mu      sync.Mutex
	offsets map[string]int64 // session id -> bytes already consumed
}

// NewOutputSink creates an empty sink-offset tracker.
func NewOutputSink() *OutputSink {
	return &OutputSink{offsets: make(map[string]int64)}
}

// ReadSince returns the bytes appended to path since the previous call for
// sessionID, and advances the tracked offset. A missing file reads as empty,
// not an error — the agent may not have started writing yet.
func (s *OutputSink) ReadSince(sessionID, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open output sink: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat output sink: %w", err)
	}

	s.mu.Lock()
	offset := s.offsets[sessionID]
	s.mu.Unlock()

	size := info.Size()
	if size < offset {
		// The agent truncated/rotated its file; restart from the beginning.
		offset = 0
	}
	if size == offset {
		return nil, nil
	}

	if _, err := f.Seek(offset, 0); err != nil {
		return nil, fmt.Errorf("seek output sink: %w", err)
	}
	buf := make([]byte, size-offset)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("read output sink: %w", err)
	}

	s.mu.Lock()
	s.offsets[sessionID] = offset + int64(n)
	s.mu.Unlock()

	return buf[:n], nil
}

// Forget drops the tracked offset for a closed session.
func (s *OutputSink) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.offsets, sessionID)
	s.mu.Unlock()
}
