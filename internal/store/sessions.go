// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/teleclaude/teleclaude/internal/model"
)

// CreateSession inserts a new session row. The (computer, multiplexer_session)
// uniqueness constraint enforces "exactly one record per identifier" (§3):
// a duplicate returns ErrDuplicate rather than a raw constraint error.
func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	metadata, err := json.Marshal(sess.AdapterMetadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
			(id, computer, project_path, multiplexer_session, origin_adapter, title,
			 system_role, human_role, created_at, last_activity_at, state, adapter_metadata, output_sink_path, headless)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Computer, sess.ProjectPath, sess.MultiplexerSession, sess.OriginAdapter, sess.Title,
		string(sess.SystemRole), string(sess.HumanRole), sess.CreatedAt, sess.LastActivityAt, string(sess.State),
		string(metadata), sess.OutputSinkPath, sess.Headless)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetSession fetches a session by id. Returns (nil, nil) if absent.
func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, computer, project_path, multiplexer_session, origin_adapter, title,
		       system_role, human_role, created_at, last_activity_at, state, adapter_metadata, output_sink_path, headless
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

// GetSessionByMultiplexer looks up a session by its (computer,
// multiplexer_session) pair. The control plane's Multiplexer-Session check
// (§6) goes through session.Registry.CheckIdentity, which does not call this.
func (s *Store) GetSessionByMultiplexer(ctx context.Context, computer, multiplexerSession string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, computer, project_path, multiplexer_session, origin_adapter, title,
		       system_role, human_role, created_at, last_activity_at, state, adapter_metadata, output_sink_path, headless
		FROM sessions WHERE computer = ? AND multiplexer_session = ?`, computer, multiplexerSession)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

// ListSessions returns every session, ordered by creation.
func (s *Store) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, computer, project_path, multiplexer_session, origin_adapter, title,
		       system_role, human_role, created_at, last_activity_at, state, adapter_metadata, output_sink_path, headless
		FROM sessions ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// UpdateSessionState transitions a session's lifecycle state and bumps
// last_activity_at.
func (s *Store) UpdateSessionState(ctx context.Context, id string, state model.SessionState, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET state = ?, last_activity_at = ? WHERE id = ?`,
		string(state), now, id)
	return err
}

// TouchSession bumps last_activity_at without changing state.
func (s *Store) TouchSession(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_activity_at = ? WHERE id = ?`, now, id)
	return err
}

// UpdateSessionMetadata replaces a session's adapter_metadata map.
func (s *Store) UpdateSessionMetadata(ctx context.Context, id string, metadata map[string]json.RawMessage) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE sessions SET adapter_metadata = ? WHERE id = ?`, string(raw), id)
	return err
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		sess       model.Session
		systemRole string
		humanRole  string
		state      string
		metadata   string
	)
	if err := row.Scan(&sess.ID, &sess.Computer, &sess.ProjectPath, &sess.MultiplexerSession, &sess.OriginAdapter,
		&sess.Title, &systemRole, &humanRole, &sess.CreatedAt, &sess.LastActivityAt, &state, &metadata,
		&sess.OutputSinkPath, &sess.Headless); err != nil {
		return nil, err
	}
	sess.SystemRole = model.SystemRole(systemRole)
	sess.HumanRole = model.HumanRole(humanRole)
	sess.State = model.SessionState(state)
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &sess.AdapterMetadata); err != nil {
			return nil, err
		}
	}
	return &sess, nil
}
