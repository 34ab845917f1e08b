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

// InsertEnvelope persists an event envelope. Envelopes are append-only: the
// pipeline never updates one after the fact, and the store never deletes one
// while a non-resolved notification still references it (§4.5).
func (s *Store) InsertEnvelope(ctx context.Context, env model.EventEnvelope) error {
	var groupKey, idempotencyKey interface{}
	if env.GroupKey != "" {
		groupKey = env.GroupKey
	}
	if env.IdempotencyKey != "" {
		idempotencyKey = env.IdempotencyKey
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_envelopes (envelope_id, type, payload, group_key, idempotency_key, produced_at, producer_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		env.EnvelopeID, env.Type, string(env.Payload), groupKey, idempotencyKey, env.ProducedAt, env.ProducerID)
	return err
}

// GetEnvelope fetches one envelope by id.
func (s *Store) GetEnvelope(ctx context.Context, envelopeID string) (*model.EventEnvelope, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT envelope_id, type, payload, group_key, idempotency_key, produced_at, producer_id
		FROM event_envelopes WHERE envelope_id = ?`, envelopeID)

	var (
		env            model.EventEnvelope
		payload        string
		groupKey       sql.NullString
		idempotencyKey sql.NullString
	)
	if err := row.Scan(&env.EnvelopeID, &env.Type, &payload, &groupKey, &idempotencyKey, &env.ProducedAt, &env.ProducerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	env.Payload = json.RawMessage(payload)
	env.GroupKey = groupKey.String
	env.IdempotencyKey = idempotencyKey.String
	return &env, nil
}

// CleanupEnvelopes deletes envelopes older than cutoff that no notification
// references anymore (resolved or never had one).
func (s *Store) CleanupEnvelopes(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM event_envelopes
		WHERE produced_at < ?
		  AND envelope_id NOT IN (
		      SELECT envelope_id FROM notifications WHERE agent_status != ?
		  )`,
		cutoff, string(model.AgentStatusResolved))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
