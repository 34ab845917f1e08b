// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/teleclaude/teleclaude/internal/model"
)

// UpsertComputer registers a computer, ignoring the call if it already
// exists.
func (s *Store) UpsertComputer(ctx context.Context, c model.Computer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO computers (name, created_at) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING`, c.Name, c.CreatedAt)
	return err
}

// ListComputers returns every registered computer.
func (s *Store) ListComputers(ctx context.Context) ([]model.Computer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, created_at FROM computers ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Computer
	for rows.Next() {
		var c model.Computer
		if err := rows.Scan(&c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertProject registers a project path, updating its display name if the
// path is already known.
func (s *Store) UpsertProject(ctx context.Context, p model.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (path, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name = excluded.name`, p.Path, p.Name, p.CreatedAt)
	return err
}

// ListProjects returns every registered project.
func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, name, created_at FROM projects ORDER BY path ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.Path, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPerson registers a person, updating name/role if already known.
func (s *Store) UpsertPerson(ctx context.Context, p model.Person) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO people (id, name, human_role, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, human_role = excluded.human_role`,
		p.ID, p.Name, string(p.HumanRole), p.CreatedAt)
	return err
}

// GetPerson fetches a person by id. Returns (nil, nil) if absent.
func (s *Store) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, human_role, created_at FROM people WHERE id = ?`, id)
	var (
		p         model.Person
		humanRole string
	)
	if err := row.Scan(&p.ID, &p.Name, &humanRole, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.HumanRole = model.HumanRole(humanRole)
	return &p, nil
}

// ListPeople returns every registered person.
func (s *Store) ListPeople(ctx context.Context) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, human_role, created_at FROM people ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Person
	for rows.Next() {
		var (
			p         model.Person
			humanRole string
		)
		if err := rows.Scan(&p.ID, &p.Name, &humanRole, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.HumanRole = model.HumanRole(humanRole)
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertChannel registers an adapter-scoped channel. (adapter, name) is
// unique; re-registering the same pair is a no-op.
func (s *Store) UpsertChannel(ctx context.Context, c model.Channel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, adapter, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(adapter, name) DO NOTHING`, c.ID, c.Adapter, c.Name, c.CreatedAt)
	return err
}

// ListChannels returns channels, optionally filtered to one adapter (empty
// string returns all).
func (s *Store) ListChannels(ctx context.Context, adapter string) ([]model.Channel, error) {
	query := `SELECT id, adapter, name, created_at FROM channels`
	args := []interface{}{}
	if adapter != "" {
		query += ` WHERE adapter = ?`
		args = append(args, adapter)
	}
	query += ` ORDER BY adapter ASC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Channel
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.ID, &c.Adapter, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
