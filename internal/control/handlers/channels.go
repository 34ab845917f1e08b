// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
)

// ListChannels returns every registered channel, optionally filtered by
// adapter via the ?adapter= query parameter.
func (h *Handlers) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.deps.Directory.ListChannels(r.Context(), r.URL.Query().Get("adapter"))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, channels)
}

type publishRequest struct {
	Adapter   string `json:"adapter"`
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// PublishToChannel sends a message to an adapter-scoped channel outside of
// any session's fanout — used for broadcast-style announcements.
func (h *Handlers) PublishToChannel(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "malformed request body")
		return
	}
	if req.Adapter == "" || req.ChannelID == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "adapter and channel_id are required")
		return
	}

	if err := h.deps.Channels.PublishToChannel(r.Context(), req.Adapter, req.ChannelID, req.Text); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, nil)
}
