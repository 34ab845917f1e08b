// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teleclaude/teleclaude/internal/model"
)

const outboxTable = "outbound_event_queue"

// InsertOutboxRow creates one outbox row for an already-persisted envelope.
// targetAdapter empty means broadcast — interpreted by the outbox worker as
// "fan out to every registered adapter".
func (s *Store) InsertOutboxRow(ctx context.Context, now time.Time, envelopeID, targetAdapter string, payload json.RawMessage) (int64, error) {
	var target interface{}
	if targetAdapter != "" {
		target = targetAdapter
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO outbound_event_queue (envelope_id, target_adapter, payload, status, attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		envelopeID, target, string(payload), string(model.InboundPending), now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ClaimOutbox attempts the CAS claim over one outbox row.
func (s *Store) ClaimOutbox(ctx context.Context, rowID int64, now, lockCutoff time.Time) (bool, error) {
	ok, err := claim(ctx, s.db, outboxTable, rowID, now, lockCutoff)
	if err != nil {
		return false, err
	}
	if ok {
		_, err = s.db.ExecContext(ctx, `UPDATE outbound_event_queue SET status = ? WHERE id = ?`,
			string(model.InboundProcessing), rowID)
	}
	return ok, err
}

// FetchPendingOutbox returns up to limit pending/failed outbox rows in
// strict id-ascending order, mirroring FetchPendingInbound.
func (s *Store) FetchPendingOutbox(ctx context.Context, limit int, now, lockCutoff time.Time) ([]model.OutboxRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, envelope_id, target_adapter, payload, status, attempts, next_retry_at, last_error, locked_at, created_at
		FROM outbound_event_queue
		WHERE status IN (?, ?)
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		  AND (locked_at IS NULL OR locked_at <= ?)
		ORDER BY id ASC
		LIMIT ?`,
		string(model.InboundPending), string(model.InboundFailed), now, lockCutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OutboxRow
	for rows.Next() {
		r, err := scanOutboxRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// MarkOutboxDelivered finalizes a row as delivered.
func (s *Store) MarkOutboxDelivered(ctx context.Context, rowID int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbound_event_queue SET status = ?, locked_at = NULL
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(model.InboundDelivered), rowID, string(model.InboundDelivered), string(model.InboundExpired))
	return err
}

// MarkOutboxFailed records a retryable failure.
func (s *Store) MarkOutboxFailed(ctx context.Context, rowID int64, now time.Time, backoff time.Duration, lastError string) error {
	nextRetry := now.Add(backoff)
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbound_event_queue
		SET status = ?, attempts = attempts + 1, next_retry_at = ?, last_error = ?, locked_at = NULL
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(model.InboundFailed), nextRetry, lastError, rowID, string(model.InboundDelivered), string(model.InboundExpired))
	return err
}

// MarkOutboxExpired finalizes a row as expired without further retry.
func (s *Store) MarkOutboxExpired(ctx context.Context, rowID int64, now time.Time, lastError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbound_event_queue SET status = ?, last_error = ?, locked_at = NULL
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(model.InboundExpired), lastError, rowID, string(model.InboundDelivered), string(model.InboundExpired))
	return err
}

// CleanupOutbox deletes terminal outbox rows older than cutoff.
func (s *Store) CleanupOutbox(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM outbound_event_queue WHERE status IN (?, ?) AND created_at < ?`,
		string(model.InboundDelivered), string(model.InboundExpired), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanOutboxRow(row rowScanner) (*model.OutboxRow, error) {
	var (
		r           model.OutboxRow
		target      sql.NullString
		status      string
		nextRetryAt sql.NullTime
		lastError   sql.NullString
		lockedAt    sql.NullTime
		payload     string
	)
	if err := row.Scan(&r.ID, &r.EnvelopeID, &target, &payload, &status, &r.Attempts, &nextRetryAt, &lastError, &lockedAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.TargetAdapter = target.String
	r.Payload = json.RawMessage(payload)
	r.Status = model.OutboxStatus(status)
	if nextRetryAt.Valid {
		t := nextRetryAt.Time
		r.NextRetryAt = &t
	}
	r.LastError = lastError.String
	if lockedAt.Valid {
		t := lockedAt.Time
		r.LockedAt = &t
	}
	return &r, nil
}
