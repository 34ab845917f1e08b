// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teleclaude/teleclaude/internal/model"
)

// ListSessions returns every known session.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.deps.Sessions.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, sessions)
}

type createSessionRequest struct {
	Computer       string           `json:"computer"`
	ProjectPath    string           `json:"project_path"`
	Title          string           `json:"title"`
	SystemRole     model.SystemRole `json:"system_role"`
	HumanRole      model.HumanRole  `json:"human_role"`
	OriginAdapter  string           `json:"origin_adapter"`
	OutputSinkPath string           `json:"output_sink_path,omitempty"`
}

// CreateSession creates a new session (§4.7 create_session).
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "malformed request body")
		return
	}
	if req.Computer == "" || req.ProjectPath == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "computer and project_path are required")
		return
	}

	sess, err := h.deps.Sessions.Create(r.Context(), SessionCreateParams{
		Computer:       req.Computer,
		ProjectPath:    req.ProjectPath,
		Title:          req.Title,
		SystemRole:     req.SystemRole,
		HumanRole:      req.HumanRole,
		OriginAdapter:  req.OriginAdapter,
		OutputSinkPath: req.OutputSinkPath,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, sess)
}

type sendRequest struct {
	Content string `json:"content"`
}

// SendToSession enqueues a message for delivery to the session's hosted
// agent (§4.2/§4.3). The endpoint's own identity belongs to the caller; the
// origin recorded on the enqueued row is always "control-plane" — platform
// adapters enqueue directly against internal/inbound.Queue instead of
// through this endpoint.
func (h *Handlers) SendToSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "malformed request body")
		return
	}
	if req.Content == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "content is required")
		return
	}

	if err := h.requireSession(w, r, id); err != nil {
		return
	}

	if err := h.deps.Inbound.Enqueue(r.Context(), id, "control-plane", req.Content); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, nil)
}

// TailSession returns output produced since the caller's last poll (§4.7
// poll_output).
func (h *Handlers) TailSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := h.requireSessionRecord(w, r, id)
	if err != nil {
		return
	}

	out, err := h.deps.Multiplexer.PollOutput(r.Context(), id, sess.OutputSinkPath)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"output": string(out)})
}

// EndSession closes a session (§4.7 close_session).
func (h *Handlers) EndSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.requireSession(w, r, id); err != nil {
		return
	}

	if err := h.deps.Multiplexer.KillSession(r.Context(), id); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if err := h.deps.Sessions.Transition(r.Context(), id, model.SessionClosed); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, nil)
}

// RunInSession is an alias of SendToSession reserved for orchestrator/worker
// callers driving an agent programmatically rather than relaying a human
// message — distinguished only by its role clearance (§6 sessions.run).
func (h *Handlers) RunInSession(w http.ResponseWriter, r *http.Request) {
	h.SendToSession(w, r)
}

// UnsubscribeSession detaches the calling adapter's observer registration
// without affecting the session itself. The fanout's per-adapter metadata
// is the only state involved, so this is a thin acknowledgement — actual
// unsubscription happens in the adapter the caller belongs to.
func (h *Handlers) UnsubscribeSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.requireSession(w, r, id); err != nil {
		return
	}
	WriteJSON(w, http.StatusOK, nil)
}

type sendFileRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// SendFile enqueues a file-bearing message for delivery (§6 inbound adapter
// contract: payload carries a durable reference, e.g. a CDN URL).
func (h *Handlers) SendFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req sendFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "malformed request body")
		return
	}
	if err := h.requireSession(w, r, id); err != nil {
		return
	}

	if err := h.deps.Inbound.Enqueue(r.Context(), id, "control-plane", string(req.Payload)); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, nil)
}

// SessionWidget returns the session record shaped for a UI widget: current
// state plus the output captured since the last poll, in one round trip.
func (h *Handlers) SessionWidget(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := h.requireSessionRecord(w, r, id)
	if err != nil {
		return
	}

	out, err := h.deps.Multiplexer.PollOutput(r.Context(), id, sess.OutputSinkPath)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"session": sess, "output": string(out)})
}

// EscalateSession re-routes the session's conversation to the orchestrator
// role by enqueueing a synthetic escalation message, origin "escalation" —
// the pipeline's domain cartridges decide what happens next.
func (h *Handlers) EscalateSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req sendRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := h.requireSession(w, r, id); err != nil {
		return
	}

	if err := h.deps.Inbound.Enqueue(r.Context(), id, "escalation", req.Content); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, nil)
}

// SessionResult returns the session record, including its final state, the
// shape a caller polls once after issuing sessions.end. It carries no output.
func (h *Handlers) SessionResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := h.requireSessionRecord(w, r, id)
	if err != nil {
		return
	}
	WriteJSON(w, http.StatusOK, sess)
}

func (h *Handlers) requireSession(w http.ResponseWriter, r *http.Request, id string) error {
	_, err := h.requireSessionRecord(w, r, id)
	return err
}

// requireSessionRecord loads a session by id, writing 404/500 directly and
// returning a non-nil error when the handler should stop.
func (h *Handlers) requireSessionRecord(w http.ResponseWriter, r *http.Request, id string) (*model.Session, error) {
	sess, err := h.deps.Sessions.Get(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return nil, err
	}
	if sess == nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "unknown session: "+id)
		return nil, errNotFound
	}
	return sess, nil
}
