// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teleclaude/teleclaude/internal/model"
)

type createTodoRequest struct {
	ProjectPath string `json:"project_path"`
	Title       string `json:"title"`
}

func (h *Handlers) createTodo(w http.ResponseWriter, r *http.Request, phase model.TodoPhase) {
	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "malformed request body")
		return
	}
	if req.ProjectPath == "" || req.Title == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "project_path and title are required")
		return
	}

	id, err := h.deps.IDs.Next()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	now := h.deps.Clock()
	todo := model.Todo{
		ID:          id,
		ProjectPath: req.ProjectPath,
		Title:       req.Title,
		Phase:       phase,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.deps.Todos.CreateTodo(r.Context(), todo); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, todo)
}

// PrepareTodo creates a todo catalog entry in the "prepare" phase.
func (h *Handlers) PrepareTodo(w http.ResponseWriter, r *http.Request) {
	h.createTodo(w, r, model.TodoPhasePrepare)
}

// WorkTodo creates a todo catalog entry in the "work" phase.
func (h *Handlers) WorkTodo(w http.ResponseWriter, r *http.Request) {
	h.createTodo(w, r, model.TodoPhaseWork)
}

// MaintainTodo creates a todo catalog entry in the "maintain" phase.
func (h *Handlers) MaintainTodo(w http.ResponseWriter, r *http.Request) {
	h.createTodo(w, r, model.TodoPhaseMaintain)
}

// ListTodos returns the todo catalog, optionally scoped to a project path.
func (h *Handlers) ListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.deps.Todos.ListTodos(r.Context(), r.URL.Query().Get("project_path"))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, todos)
}

// MarkTodoPhase transitions a todo to a new phase. The core holds no
// transition rules (spec Non-goal); this is a plain write.
func (h *Handlers) MarkTodoPhase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Phase model.TodoPhase `json:"phase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "malformed request body")
		return
	}

	if err := h.deps.Todos.MarkTodoPhase(r.Context(), id, req.Phase, h.deps.Clock()); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, nil)
}

// SetTodoDeps replaces a todo's dependency edge set.
func (h *Handlers) SetTodoDeps(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		DependsOn []string `json:"depends_on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "malformed request body")
		return
	}

	if err := h.deps.Todos.SetTodoDeps(r.Context(), id, req.DependsOn, h.deps.Clock()); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, nil)
}
