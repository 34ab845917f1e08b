// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/model"
)

// webUIEvent is the wire shape pushed to connected local UI clients.
type webUIEvent struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id"`
	Text          string    `json:"text,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	LastChangedAt time.Time `json:"last_changed_at,omitempty"`
	Origin        string    `json:"origin,omitempty"`
}

// WebUIAdapter fans session output out to any local web UI clients
// connected over websocket. There is no edit-in-place concept here (§4.4):
// each connected client just replays the latest full text for its session,
// so SendOutputUpdate never needs persisted per-session metadata.
type WebUIAdapter struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*webUIClient // keyed by connection id
}

type webUIClient struct {
	id   string
	conn *websocket.Conn
	send chan webUIEvent
}

// NewWebUIAdapter builds the web UI adapter. Its ServeHTTP method is meant
// to be registered on the control plane's router under a websocket path.
func NewWebUIAdapter(logger *zap.Logger) *WebUIAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebUIAdapter{
		logger: logger,
		upgrader: websocket.Upgrader{
			// Local-only unix socket listener (§6); any origin is fine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*webUIClient),
	}
}

// Name implements Adapter.
func (a *WebUIAdapter) Name() string { return "webui" }

// SendOutputUpdate implements Adapter: broadcasts the update to every
// connected client. meta is always returned unchanged — there is nothing
// to persist per session.
func (a *WebUIAdapter) SendOutputUpdate(ctx context.Context, sessionID, text string, startedAt, lastChangedAt time.Time, meta json.RawMessage) (json.RawMessage, error) {
	a.broadcast(webUIEvent{
		Type:          "output_update",
		SessionID:     sessionID,
		Text:          text,
		StartedAt:     startedAt,
		LastChangedAt: lastChangedAt,
	})
	return meta, nil
}

// NotifyObserverUpdate implements Adapter.
func (a *WebUIAdapter) NotifyObserverUpdate(ctx context.Context, sessionID string, row model.InboundRow) error {
	a.broadcast(webUIEvent{
		Type:      "observer_update",
		SessionID: sessionID,
		Origin:    row.Origin,
	})
	return nil
}

// PublishToChannel implements Adapter: broadcasts a channel_message event
// to every connected client, tagging it with channelID in place of a
// session id.
func (a *WebUIAdapter) PublishToChannel(ctx context.Context, channelID, text string) error {
	a.broadcast(webUIEvent{
		Type:      "channel_message",
		SessionID: channelID,
		Text:      text,
	})
	return nil
}

func (a *WebUIAdapter) broadcast(ev webUIEvent) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range a.clients {
		select {
		case c.send <- ev:
		default:
			a.logger.Warn("webui client send buffer full, dropping event", zap.String("conn_id", c.id))
		}
	}
}

// ServeHTTP upgrades the connection and pumps broadcast events to it until
// the client disconnects or the request context is cancelled.
func (a *WebUIAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error("webui ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := &webUIClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan webUIEvent, 64),
	}

	a.mu.Lock()
	a.clients[client.id] = client
	a.mu.Unlock()

	a.logger.Info("webui client connected", zap.String("conn_id", client.id))

	defer func() {
		a.mu.Lock()
		delete(a.clients, client.id)
		a.mu.Unlock()
		a.logger.Info("webui client disconnected", zap.String("conn_id", client.id))
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-client.send:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				a.logger.Error("failed to marshal webui event", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				a.logger.Warn("webui send failed", zap.Error(err))
				return
			}
		}
	}
}
