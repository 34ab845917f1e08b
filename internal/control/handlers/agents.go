// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/teleclaude/teleclaude/internal/model"
)

// agentStatusView is the per-session agent status projection: the Session
// record already holds everything this endpoint reports, so it is a
// read-only reshaping rather than a separate subsystem.
type agentStatusView struct {
	SessionID      string             `json:"session_id"`
	Computer       string             `json:"computer"`
	State          model.SessionState `json:"state"`
	LastActivityAt string             `json:"last_activity_at"`
}

// AgentStatus reports the lifecycle state of every hosted agent session.
func (h *Handlers) AgentStatus(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.deps.Sessions.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	views := make([]agentStatusView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, agentStatusView{
			SessionID:      sess.ID,
			Computer:       sess.Computer,
			State:          sess.State,
			LastActivityAt: sess.LastActivityAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	WriteJSON(w, http.StatusOK, views)
}

// AgentAvailability reports, per computer, whether it currently hosts any
// non-closed session — a coarse signal for "is this computer busy".
func (h *Handlers) AgentAvailability(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.deps.Sessions.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	busy := make(map[string]bool)
	for _, sess := range sessions {
		if sess.State != model.SessionClosed {
			busy[sess.Computer] = true
		}
	}

	computers, err := h.deps.Directory.ListComputers(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	type availability struct {
		Computer  string `json:"computer"`
		Available bool   `json:"available"`
	}
	out := make([]availability, 0, len(computers))
	for _, c := range computers {
		out = append(out, availability{Computer: c.Name, Available: !busy[c.Name]})
	}
	WriteJSON(w, http.StatusOK, out)
}
