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

// UpsertNotification inserts a notification, or — if one with the same
// idempotency_key already exists — leaves it untouched and returns the
// existing row. This is the Notification Projector cartridge's coalescing
// primitive (§4.5): repeated envelopes with the same idempotency key collapse
// onto one notification rather than paging an agent twice. group_key is
// stored but not used for coalescing; envelopes that share only a group_key
// get separate notifications.
func (s *Store) UpsertNotification(ctx context.Context, n model.NotificationRow) (*model.NotificationRow, error) {
	var groupKey interface{}
	if n.GroupKey != "" {
		groupKey = n.GroupKey
	}
	var payload interface{}
	if len(n.Payload) > 0 {
		payload = string(n.Payload)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (idempotency_key, group_key, envelope_id, summary, agent_status, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(idempotency_key) DO NOTHING`,
		n.IdempotencyKey, groupKey, n.EnvelopeID, n.Summary, string(model.AgentStatusNone), payload)
	if err != nil {
		return nil, err
	}
	return s.GetNotificationByKey(ctx, n.IdempotencyKey)
}

// GetNotificationByKey fetches a notification by its idempotency key.
func (s *Store) GetNotificationByKey(ctx context.Context, idempotencyKey string) (*model.NotificationRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, group_key, envelope_id, summary, agent_status, claimed_by, resolved_by, resolved_at, payload
		FROM notifications WHERE idempotency_key = ?`, idempotencyKey)
	return scanNotificationRow(row)
}

// ClaimNotification moves a notification from none to claimed. Returns
// false without error if it was already claimed or resolved by someone else.
func (s *Store) ClaimNotification(ctx context.Context, id int64, claimedBy string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET agent_status = ?, claimed_by = ?
		WHERE id = ? AND agent_status = ?`,
		string(model.AgentStatusClaimed), claimedBy, id, string(model.AgentStatusNone))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ResolveNotification marks a notification resolved. Idempotent: resolving
// an already-resolved notification is a no-op, not an error.
func (s *Store) ResolveNotification(ctx context.Context, id int64, resolvedBy string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET agent_status = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND agent_status != ?`,
		string(model.AgentStatusResolved), resolvedBy, now, id, string(model.AgentStatusResolved))
	return err
}

// ListOpenNotifications returns notifications that have not been resolved,
// most recently created last.
func (s *Store) ListOpenNotifications(ctx context.Context) ([]model.NotificationRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idempotency_key, group_key, envelope_id, summary, agent_status, claimed_by, resolved_by, resolved_at, payload
		FROM notifications WHERE agent_status != ? ORDER BY id ASC`,
		string(model.AgentStatusResolved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.NotificationRow
	for rows.Next() {
		n, err := scanNotificationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func scanNotificationRow(row rowScanner) (*model.NotificationRow, error) {
	var (
		n          model.NotificationRow
		groupKey   sql.NullString
		agentStat  string
		claimedBy  sql.NullString
		resolvedBy sql.NullString
		resolvedAt sql.NullTime
		payload    sql.NullString
	)
	if err := row.Scan(&n.ID, &n.IdempotencyKey, &groupKey, &n.EnvelopeID, &n.Summary, &agentStat,
		&claimedBy, &resolvedBy, &resolvedAt, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.GroupKey = groupKey.String
	n.AgentStatus = model.AgentStatus(agentStat)
	n.ClaimedBy = claimedBy.String
	n.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		n.ResolvedAt = &t
	}
	if payload.Valid {
		n.Payload = json.RawMessage(payload.String)
	}
	return &n, nil
}
