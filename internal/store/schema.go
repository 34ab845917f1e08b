// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import "context"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
	id                  TEXT PRIMARY KEY,
	computer            TEXT NOT NULL,
	project_path        TEXT NOT NULL,
	multiplexer_session TEXT NOT NULL,
	origin_adapter      TEXT NOT NULL,
	title               TEXT NOT NULL DEFAULT '',
	system_role         TEXT NOT NULL,
	human_role          TEXT NOT NULL,
	created_at          TIMESTAMP NOT NULL,
	last_activity_at    TIMESTAMP NOT NULL,
	state               TEXT NOT NULL,
	adapter_metadata    TEXT NOT NULL DEFAULT '{}',
	output_sink_path    TEXT NOT NULL DEFAULT '',
	headless            BOOLEAN NOT NULL DEFAULT 0,
	UNIQUE(computer, multiplexer_session)
);

CREATE TABLE IF NOT EXISTS inbound_queue (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id         TEXT NOT NULL,
	origin             TEXT NOT NULL,
	message_type       TEXT NOT NULL,
	content            TEXT NOT NULL,
	payload            TEXT,
	actor_id           TEXT,
	actor_display_name TEXT,
	status             TEXT NOT NULL,
	created_at         TIMESTAMP NOT NULL,
	processed_at       TIMESTAMP,
	attempt_count      INTEGER NOT NULL DEFAULT 0,
	next_retry_at      TIMESTAMP,
	last_error         TEXT,
	locked_at          TIMESTAMP,
	source_message_id  TEXT,
	source_channel_id  TEXT
);
CREATE INDEX IF NOT EXISTS idx_inbound_session_status ON inbound_queue(session_id, status, next_retry_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_inbound_dedup ON inbound_queue(origin, source_message_id) WHERE source_message_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS outbound_event_queue (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	envelope_id    TEXT NOT NULL,
	target_adapter TEXT,
	payload        TEXT NOT NULL,
	status         TEXT NOT NULL,
	attempts       INTEGER NOT NULL DEFAULT 0,
	next_retry_at  TIMESTAMP,
	last_error     TEXT,
	locked_at      TIMESTAMP,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbound_event_queue(status, next_retry_at);
CREATE INDEX IF NOT EXISTS idx_outbox_envelope ON outbound_event_queue(envelope_id);

CREATE TABLE IF NOT EXISTS event_envelopes (
	envelope_id     TEXT PRIMARY KEY,
	type            TEXT NOT NULL,
	payload         TEXT NOT NULL,
	group_key       TEXT,
	idempotency_key TEXT,
	produced_at     TIMESTAMP NOT NULL,
	producer_id     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_envelopes_type ON event_envelopes(type);

CREATE TABLE IF NOT EXISTS notifications (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	idempotency_key TEXT NOT NULL UNIQUE,
	group_key       TEXT,
	envelope_id     TEXT NOT NULL,
	summary         TEXT NOT NULL,
	agent_status    TEXT NOT NULL DEFAULT 'none',
	claimed_by      TEXT,
	resolved_by     TEXT,
	resolved_at     TIMESTAMP,
	payload         TEXT
);
CREATE INDEX IF NOT EXISTS idx_notifications_group ON notifications(group_key);

CREATE TABLE IF NOT EXISTS computers (
	name       TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	path       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS people (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	human_role TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS channels (
	id         TEXT PRIMARY KEY,
	adapter    TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(adapter, name)
);

CREATE TABLE IF NOT EXISTS todos (
	id           TEXT PRIMARY KEY,
	project_path TEXT NOT NULL,
	title        TEXT NOT NULL,
	phase        TEXT NOT NULL,
	depends_on   TEXT NOT NULL DEFAULT '[]',
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
`

// migrate creates the schema if absent. Idempotent, as required by §4.1.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaDDL)
	return err
}
