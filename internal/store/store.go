// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store implements the durable, WAL-mode relational persistence
// layer: sessions, the inbound and outbound queues, event envelopes,
// notifications, and the directory tables (computers, projects, people,
// channels). Every mutating operation takes an explicit `now` so behavior is
// deterministic under test.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Clock supplies the current time. Production code uses time.Now; tests
// supply a fixed or stepped clock, the same pattern Chartly's relational
// store package uses to keep assertions deterministic.
type Clock func() time.Time

// Store wraps the durable SQLite-backed database.
type Store struct {
	db    *sql.DB
	clock Clock
}

// Options configures Store construction.
type Options struct {
	// BusyTimeout bounds how long a writer waits for contending writers
	// before SQLITE_BUSY is surfaced to the caller as a transient failure.
	BusyTimeout time.Duration
	// Clock overrides time.Now, for tests.
	Clock Clock
}

// Open opens (creating if absent) the SQLite database at path, enables WAL
// mode and a busy timeout, and ensures the schema exists.
func Open(path string, opts Options) (*Store, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		path, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY storms under WAL; reads
	// share it too since our access patterns are short transactions, never
	// held across a suspension point.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, clock: opts.Clock}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Now returns the store's clock value. Callers that need "now" for a
// mutating operation should prefer passing it explicitly rather than calling
// this mid-operation.
func (s *Store) Now() time.Time {
	return s.clock()
}

// DB exposes the underlying handle for callers outside this package that
// need direct access without growing Store's surface for every table.
func (s *Store) DB() *sql.DB {
	return s.db
}
