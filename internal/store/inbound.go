// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/teleclaude/teleclaude/internal/model"
)

// ErrDuplicate is returned (and also silently translated to a nil *int64 ID
// by EnqueueInbound) when a uniqueness constraint rejects an insert — the
// deduplication primitive from §4.1.
var ErrDuplicate = errors.New("duplicate row")

// EnqueueInboundParams names the fields needed to enqueue one inbound row.
type EnqueueInboundParams struct {
	SessionID        string
	Origin           string
	MessageType      model.MessageType
	Content          string
	Payload          json.RawMessage
	ActorID          string
	ActorDisplayName string
	SourceMessageID  string
	SourceChannelID  string
}

// EnqueueInbound inserts a new inbound row. It returns (nil, nil) — not an
// error — when (origin, source_message_id) already exists: racing producers
// never see a uniqueness-violation error, only a nil id, per §4.1's
// insert-if-absent contract.
func (s *Store) EnqueueInbound(ctx context.Context, now time.Time, p EnqueueInboundParams) (*int64, error) {
	var payload interface{}
	if len(p.Payload) > 0 {
		payload = string(p.Payload)
	}
	var sourceMessageID interface{}
	if p.SourceMessageID != "" {
		sourceMessageID = p.SourceMessageID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inbound_queue
			(session_id, origin, message_type, content, payload, actor_id, actor_display_name,
			 status, created_at, attempt_count, source_message_id, source_channel_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		p.SessionID, p.Origin, string(p.MessageType), p.Content, payload, p.ActorID, p.ActorDisplayName,
		string(model.InboundPending), now, sourceMessageID, p.SourceChannelID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const inboundTable = "inbound_queue"

// ClaimInbound attempts the CAS claim over one inbound row.
func (s *Store) ClaimInbound(ctx context.Context, rowID int64, now, lockCutoff time.Time) (bool, error) {
	ok, err := claim(ctx, s.db, inboundTable, rowID, now, lockCutoff)
	if err != nil {
		return false, err
	}
	if ok {
		_, err = s.db.ExecContext(ctx, `UPDATE inbound_queue SET status = ? WHERE id = ?`,
			string(model.InboundProcessing), rowID)
	}
	return ok, err
}

// FetchPendingInbound returns up to limit pending/failed rows for session,
// whose retry window has opened and whose lock (if any) has expired, in
// strict id-ascending order — the FIFO contract of §4.2.
func (s *Store) FetchPendingInbound(ctx context.Context, sessionID string, limit int, now, lockCutoff time.Time) ([]model.InboundRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, origin, message_type, content, payload, actor_id, actor_display_name,
		       status, created_at, processed_at, attempt_count, next_retry_at, last_error, locked_at,
		       source_message_id, source_channel_id
		FROM inbound_queue
		WHERE session_id = ?
		  AND status IN (?, ?)
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		  AND (locked_at IS NULL OR locked_at <= ?)
		ORDER BY id ASC
		LIMIT ?`,
		sessionID, string(model.InboundPending), string(model.InboundFailed), now, lockCutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInboundRows(rows)
}

// ListSessionsWithPendingInbound supports inbound-worker startup/rediscovery
// (§4.2 `startup()`).
func (s *Store) ListSessionsWithPendingInbound(ctx context.Context, now, lockCutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT session_id FROM inbound_queue
		WHERE status IN (?, ?)
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		  AND (locked_at IS NULL OR locked_at <= ?)`,
		string(model.InboundPending), string(model.InboundFailed), now, lockCutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkInboundDelivered finalizes a row as delivered. Terminal: never mutated
// again (§3, §8 invariant 1).
func (s *Store) MarkInboundDelivered(ctx context.Context, rowID int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE inbound_queue SET status = ?, processed_at = ?, locked_at = NULL
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(model.InboundDelivered), now, rowID, string(model.InboundDelivered), string(model.InboundExpired))
	return err
}

// MarkInboundFailed records a retryable failure with the computed backoff
// deadline.
func (s *Store) MarkInboundFailed(ctx context.Context, rowID int64, now time.Time, backoff time.Duration, lastError string) error {
	nextRetry := now.Add(backoff)
	_, err := s.db.ExecContext(ctx, `
		UPDATE inbound_queue
		SET status = ?, attempt_count = attempt_count + 1, next_retry_at = ?, last_error = ?, locked_at = NULL
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(model.InboundFailed), nextRetry, lastError, rowID, string(model.InboundDelivered), string(model.InboundExpired))
	return err
}

// MarkInboundExpired finalizes a row as expired without further retry
// (PermanentDeliveryError, §7).
func (s *Store) MarkInboundExpired(ctx context.Context, rowID int64, now time.Time, lastError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE inbound_queue SET status = ?, processed_at = ?, last_error = ?, locked_at = NULL
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(model.InboundExpired), now, lastError, rowID, string(model.InboundDelivered), string(model.InboundExpired))
	return err
}

// ExpireSessionInbound marks every non-terminal row for a session as
// expired, used by session close (§4.2 `expire_session`).
func (s *Store) ExpireSessionInbound(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inbound_queue SET status = ?, processed_at = ?, locked_at = NULL
		WHERE session_id = ? AND status NOT IN (?, ?)`,
		string(model.InboundExpired), now, sessionID, string(model.InboundDelivered), string(model.InboundExpired))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupInbound deletes terminal rows older than cutoff. Idempotent.
func (s *Store) CleanupInbound(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM inbound_queue WHERE status IN (?, ?) AND created_at < ?`,
		string(model.InboundDelivered), string(model.InboundExpired), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetInbound fetches a single row by id.
func (s *Store) GetInbound(ctx context.Context, rowID int64) (*model.InboundRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, origin, message_type, content, payload, actor_id, actor_display_name,
		       status, created_at, processed_at, attempt_count, next_retry_at, last_error, locked_at,
		       source_message_id, source_channel_id
		FROM inbound_queue WHERE id = ?`, rowID)
	r, err := scanInboundRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInboundRow(row rowScanner) (*model.InboundRow, error) {
	var (
		r               model.InboundRow
		messageType     string
		status          string
		payload         sql.NullString
		actorID         sql.NullString
		actorName       sql.NullString
		processedAt     sql.NullTime
		nextRetryAt     sql.NullTime
		lastError       sql.NullString
		lockedAt        sql.NullTime
		sourceMessageID sql.NullString
		sourceChannelID sql.NullString
	)
	if err := row.Scan(&r.ID, &r.SessionID, &r.Origin, &messageType, &r.Content, &payload, &actorID, &actorName,
		&status, &r.CreatedAt, &processedAt, &r.AttemptCount, &nextRetryAt, &lastError, &lockedAt,
		&sourceMessageID, &sourceChannelID); err != nil {
		return nil, err
	}
	r.MessageType = model.MessageType(messageType)
	r.Status = model.InboundStatus(status)
	if payload.Valid {
		r.Payload = json.RawMessage(payload.String)
	}
	r.ActorID = actorID.String
	r.ActorDisplayName = actorName.String
	if processedAt.Valid {
		t := processedAt.Time
		r.ProcessedAt = &t
	}
	if nextRetryAt.Valid {
		t := nextRetryAt.Time
		r.NextRetryAt = &t
	}
	r.LastError = lastError.String
	if lockedAt.Valid {
		t := lockedAt.Time
		r.LockedAt = &t
	}
	r.SourceMessageID = sourceMessageID.String
	r.SourceChannelID = sourceChannelID.String
	return &r, nil
}

func scanInboundRows(rows *sql.Rows) ([]model.InboundRow, error) {
	var out []model.InboundRow
	for rows.Next() {
		r, err := scanInboundRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
