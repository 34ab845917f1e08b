// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strings"
)

// contextHit is one search result surfaced by ContextQuery.
type contextHit struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ContextQuery does a best-effort substring search across sessions and the
// todo catalog, so an agent or operator can locate a resource by name
// without knowing which endpoint cluster it lives under.
func (h *Handlers) ContextQuery(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	var hits []contextHit

	if q != "" {
		sessions, err := h.deps.Sessions.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
			return
		}
		for _, sess := range sessions {
			if strings.Contains(strings.ToLower(sess.Title), q) || strings.Contains(strings.ToLower(sess.ProjectPath), q) {
				hits = append(hits, contextHit{Kind: "session", ID: sess.ID, Title: sess.Title})
			}
		}

		todos, err := h.deps.Todos.ListTodos(r.Context(), "")
		if err != nil {
			WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
			return
		}
		for _, t := range todos {
			if strings.Contains(strings.ToLower(t.Title), q) {
				hits = append(hits, contextHit{Kind: "todo", ID: t.ID, Title: t.Title})
			}
		}
	}

	WriteJSON(w, http.StatusOK, hits)
}

// helpEntry documents one endpoint for the context.help listing.
type helpEntry struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	About  string `json:"about"`
}

// ContextHelp returns a static directory of every control-plane endpoint,
// letting a caller discover the API surface without external docs.
func (h *Handlers) ContextHelp(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, []helpEntry{
		{"GET", "/api/v1/sessions", "list every known session"},
		{"POST", "/api/v1/sessions", "create a session"},
		{"POST", "/api/v1/sessions/{id}/send", "deliver a message to a session's agent"},
		{"GET", "/api/v1/sessions/{id}/tail", "read output produced since the last poll"},
		{"POST", "/api/v1/sessions/{id}/end", "close a session"},
		{"POST", "/api/v1/sessions/{id}/run", "drive a session programmatically"},
		{"POST", "/api/v1/sessions/{id}/unsubscribe", "detach the caller's observer registration"},
		{"POST", "/api/v1/sessions/{id}/file", "deliver a file reference to a session's agent"},
		{"GET", "/api/v1/sessions/{id}/widget", "fetch session state plus recent output in one call"},
		{"POST", "/api/v1/sessions/{id}/escalate", "route a session's conversation to the orchestrator"},
		{"GET", "/api/v1/sessions/{id}/result", "fetch a session's final state"},
		{"GET", "/api/v1/todos", "list the todo catalog"},
		{"POST", "/api/v1/todos/prepare", "create a todo in the prepare phase"},
		{"POST", "/api/v1/todos/work", "create a todo in the work phase"},
		{"POST", "/api/v1/todos/maintain", "create a todo in the maintain phase"},
		{"POST", "/api/v1/todos/{id}/mark-phase", "transition a todo's phase"},
		{"POST", "/api/v1/todos/{id}/set-deps", "replace a todo's dependency edges"},
		{"GET", "/api/v1/computers", "list registered computers"},
		{"GET", "/api/v1/projects", "list registered projects"},
		{"GET", "/api/v1/agents/status", "report hosted agent lifecycle state"},
		{"GET", "/api/v1/agents/availability", "report per-computer availability"},
		{"GET", "/api/v1/channels", "list registered channels"},
		{"POST", "/api/v1/channels/publish", "publish to an adapter-scoped channel"},
		{"GET", "/api/v1/context/query", "search sessions and todos by substring"},
		{"GET", "/api/v1/context/help", "this listing"},
		{"POST", "/api/v1/deploy", "start a worker session that runs a deploy command"},
	})
}
