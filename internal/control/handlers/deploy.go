// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/teleclaude/teleclaude/internal/model"
)

type deployRequest struct {
	Computer    string `json:"computer"`
	ProjectPath string `json:"project_path"`
	Command     string `json:"command"`
}

// Deploy starts a headless worker session scoped to project_path and
// enqueues command for delivery — deployment itself is whatever the hosted
// agent and its shell wrapper do with that text; the control plane only
// creates the session and relays the one message (§4.6 boundary purity).
func (h *Handlers) Deploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "malformed request body")
		return
	}
	if req.Computer == "" || req.ProjectPath == "" || req.Command == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "computer, project_path and command are required")
		return
	}

	sess, err := h.deps.Sessions.Create(r.Context(), SessionCreateParams{
		Computer:      req.Computer,
		ProjectPath:   req.ProjectPath,
		Title:         "deploy: " + req.ProjectPath,
		SystemRole:    model.SystemRoleWorker,
		HumanRole:     model.HumanRoleAdmin,
		OriginAdapter: "control-plane",
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	if err := h.deps.Inbound.Enqueue(r.Context(), sess.ID, "deploy", req.Command); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, sess)
}
