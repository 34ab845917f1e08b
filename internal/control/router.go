// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package control implements the control plane (§4.6): a thin,
// identity-and-role-checked HTTP translator in front of the backend
// functions that hold every actual business rule.
package control

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/control/handlers"
	"github.com/teleclaude/teleclaude/internal/control/middleware"
)

// Dependencies wires every backend the control plane translates requests
// into calls on. Handlers receive the relevant slice of this struct rather
// than the whole thing, so each handlers subpackage only imports what it
// needs.
type Dependencies struct {
	Sessions SessionLookup
	Handlers handlers.Dependencies
	Matrix   *Matrix
	Logger   *zap.Logger
}

// route pairs an HTTP route with the static role-clearance key it checks
// against the Matrix. Kept alongside the route registration so the
// boundary-purity rule (§4.6: "never short-circuits the identity/role
// check for convenience") is visible at the call site.
type route struct {
	method   string
	path     string
	endpoint string
	handler  http.HandlerFunc
}

// NewRouter builds the gorilla/mux router for the local control-plane
// socket, wired with logging, recovery, and CORS middleware plus the
// dual-factor identity and per-endpoint role gate ahead of every handler.
func NewRouter(deps Dependencies) http.Handler {
	h := handlers.New(deps.Handlers)

	routes := []route{
		{http.MethodGet, "/api/v1/sessions", "sessions.list", h.ListSessions},
		{http.MethodPost, "/api/v1/sessions", "sessions.create", h.CreateSession},
		{http.MethodPost, "/api/v1/sessions/{id}/send", "sessions.send", h.SendToSession},
		{http.MethodGet, "/api/v1/sessions/{id}/tail", "sessions.tail", h.TailSession},
		{http.MethodPost, "/api/v1/sessions/{id}/end", "sessions.end", h.EndSession},
		{http.MethodPost, "/api/v1/sessions/{id}/run", "sessions.run", h.RunInSession},
		{http.MethodPost, "/api/v1/sessions/{id}/unsubscribe", "sessions.unsubscribe", h.UnsubscribeSession},
		{http.MethodPost, "/api/v1/sessions/{id}/file", "sessions.file", h.SendFile},
		{http.MethodGet, "/api/v1/sessions/{id}/widget", "sessions.widget", h.SessionWidget},
		{http.MethodPost, "/api/v1/sessions/{id}/escalate", "sessions.escalate", h.EscalateSession},
		{http.MethodGet, "/api/v1/sessions/{id}/result", "sessions.result", h.SessionResult},

		{http.MethodGet, "/api/v1/todos", "todos.list", h.ListTodos},
		{http.MethodPost, "/api/v1/todos/prepare", "todos.prepare", h.PrepareTodo},
		{http.MethodPost, "/api/v1/todos/work", "todos.work", h.WorkTodo},
		{http.MethodPost, "/api/v1/todos/maintain", "todos.maintain", h.MaintainTodo},
		{http.MethodPost, "/api/v1/todos/{id}/mark-phase", "todos.mark_phase", h.MarkTodoPhase},
		{http.MethodPost, "/api/v1/todos/{id}/set-deps", "todos.set_deps", h.SetTodoDeps},

		{http.MethodGet, "/api/v1/computers", "computers.list", h.ListComputers},
		{http.MethodGet, "/api/v1/projects", "projects.list", h.ListProjects},

		{http.MethodGet, "/api/v1/agents/status", "agents.status", h.AgentStatus},
		{http.MethodGet, "/api/v1/agents/availability", "agents.availability", h.AgentAvailability},

		{http.MethodGet, "/api/v1/channels", "channels.list", h.ListChannels},
		{http.MethodPost, "/api/v1/channels/publish", "channels.publish", h.PublishToChannel},

		{http.MethodGet, "/api/v1/context/query", "context.query", h.ContextQuery},
		{http.MethodGet, "/api/v1/context/help", "context.help", h.ContextHelp},

		{http.MethodPost, "/api/v1/deploy", "deploy", h.Deploy},
	}

	router := mux.NewRouter()
	api := router.NewRoute().Subrouter()
	for _, rt := range routes {
		api.Handle(rt.path, gate(deps, rt.endpoint, rt.handler)).Methods(rt.method)
	}

	var handler http.Handler = router
	handler = middleware.CORS(handler)
	handler = middleware.Logging(deps.Logger)(handler)
	handler = middleware.Recovery(deps.Logger)(handler)
	return handler
}

// gate wraps a handler with the dual-factor identity check and the static
// per-endpoint role clearance (§4.6). It is the only place in the control
// plane identity or roles are evaluated — handlers below it never see an
// unauthenticated or under-cleared request.
func gate(deps Dependencies, endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := authenticate(r.Context(), deps.Sessions, r.Header.Get(headerCallerSessionID), r.Header.Get(headerMultiplexerSession))
		if err != nil {
			if isUnauthorized(err) {
				handlers.WriteError(w, http.StatusUnauthorized, handlers.ErrUnauthorized, err.Error())
				return
			}
			handlers.WriteError(w, http.StatusForbidden, handlers.ErrForbidden, err.Error())
			return
		}

		if !deps.Matrix.Allows(endpoint, sess.SystemRole, sess.HumanRole) {
			handlers.WriteError(w, http.StatusForbidden, handlers.ErrForbidden, "not cleared for "+endpoint)
			return
		}

		next.ServeHTTP(w, withSession(r, sess))
	}
}
