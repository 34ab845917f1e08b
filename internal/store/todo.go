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

// CreateTodo inserts a new todo row. Deliberately shallow per the spec's
// Non-goal on workflow state-machine semantics: the store holds the catalog,
// not phase-transition business rules.
func (s *Store) CreateTodo(ctx context.Context, t model.Todo) error {
	deps, err := json.Marshal(t.DependsOn)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO todos (id, project_path, title, phase, depends_on, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectPath, t.Title, string(t.Phase), string(deps), t.CreatedAt, t.UpdatedAt)
	return err
}

// GetTodo fetches a todo by id. Returns (nil, nil) if absent.
func (s *Store) GetTodo(ctx context.Context, id string) (*model.Todo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_path, title, phase, depends_on, created_at, updated_at
		FROM todos WHERE id = ?`, id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListTodos returns every todo scoped to a project path (empty returns all),
// ordered by creation.
func (s *Store) ListTodos(ctx context.Context, projectPath string) ([]model.Todo, error) {
	query := `SELECT id, project_path, title, phase, depends_on, created_at, updated_at FROM todos`
	args := []interface{}{}
	if projectPath != "" {
		query += ` WHERE project_path = ?`
		args = append(args, projectPath)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// MarkTodoPhase transitions a todo to a new phase, bumping updated_at. The
// pipeline's domain cartridges are the only callers that decide what phase
// follows what — this is a plain write, not a state machine.
func (s *Store) MarkTodoPhase(ctx context.Context, id string, phase model.TodoPhase, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE todos SET phase = ?, updated_at = ? WHERE id = ?`,
		string(phase), now, id)
	return err
}

// SetTodoDeps replaces a todo's dependency edge set.
func (s *Store) SetTodoDeps(ctx context.Context, id string, dependsOn []string, now time.Time) error {
	deps, err := json.Marshal(dependsOn)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE todos SET depends_on = ?, updated_at = ? WHERE id = ?`,
		string(deps), now, id)
	return err
}

// DeleteTodo removes a todo from the catalog.
func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	return err
}

func scanTodo(row rowScanner) (*model.Todo, error) {
	var (
		t     model.Todo
		phase string
		deps  string
	)
	if err := row.Scan(&t.ID, &t.ProjectPath, &t.Title, &phase, &deps, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Phase = model.TodoPhase(phase)
	if deps != "" {
		if err := json.Unmarshal([]byte(deps), &t.DependsOn); err != nil {
			return nil, err
		}
	}
	return &t, nil
}
