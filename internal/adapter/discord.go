// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/errs"
	"github.com/teleclaude/teleclaude/internal/model"
)

const discordAPIBase = "https://discord.com/api/v10"

// discordMeta is what DiscordAdapter persists in a session's
// adapter_metadata["discord"] slice.
type discordMeta struct {
	MessageID string `json:"message_id"`
}

// DiscordAdapter posts session output to a Discord channel via a bot token,
// editing the same message in place for every update (§4.4), mirroring the
// Telegram adapter's shape with Discord's own wire format.
type DiscordAdapter struct {
	httpClient *http.Client
	token      string
	channelID  string
	limiter    *catrate.Limiter
	breaker    *gobreaker.CircuitBreaker[json.RawMessage]
	logger     *zap.Logger
}

// NewDiscordAdapter builds a Discord adapter from config.
func NewDiscordAdapter(tokenEnvVar, channelID string, ratePerSec int, logger *zap.Logger) *DiscordAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	a := &DiscordAdapter{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		token:      os.Getenv(tokenEnvVar),
		channelID:  channelID,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: ratePerSec,
		}),
		logger: logger,
	}
	a.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "discord",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return a
}

// Name implements Adapter.
func (a *DiscordAdapter) Name() string { return "discord" }

// SendOutputUpdate implements Adapter.
func (a *DiscordAdapter) SendOutputUpdate(ctx context.Context, sessionID, text string, startedAt, lastChangedAt time.Time, meta json.RawMessage) (json.RawMessage, error) {
	if _, ok := a.limiter.Allow(sessionID); !ok {
		return meta, errs.Transient(nil, "discord rate limit exceeded")
	}

	var prior discordMeta
	hasPrior := len(meta) > 0
	if hasPrior {
		if err := json.Unmarshal(meta, &prior); err != nil || prior.MessageID == "" {
			hasPrior = false
		}
	}

	if hasPrior {
		if err := a.editMessage(ctx, prior.MessageID, text); err != nil {
			return meta, err
		}
		return meta, nil
	}

	id, err := a.createMessage(ctx, text)
	if err != nil {
		return meta, err
	}
	return json.Marshal(discordMeta{MessageID: id})
}

// NotifyObserverUpdate implements Adapter.
func (a *DiscordAdapter) NotifyObserverUpdate(ctx context.Context, sessionID string, row model.InboundRow) error {
	text := fmt.Sprintf("[%s] new input delivered via %s", sessionID, row.Origin)
	_, err := a.createMessage(ctx, text)
	return err
}

// PublishToChannel implements Adapter. Discord's config binds this daemon
// to a single channel (§6), so channelID is ignored; the message always
// goes to the configured channel.
func (a *DiscordAdapter) PublishToChannel(ctx context.Context, channelID, text string) error {
	_, err := a.createMessage(ctx, text)
	return err
}

type discordMessageResult struct {
	ID string `json:"id"`
}

func (a *DiscordAdapter) createMessage(ctx context.Context, content string) (string, error) {
	path := fmt.Sprintf("/channels/%s/messages", a.channelID)
	body, err := a.call(ctx, http.MethodPost, path, map[string]interface{}{"content": content})
	if err != nil {
		return "", err
	}
	var res discordMessageResult
	if err := json.Unmarshal(body, &res); err != nil {
		return "", errs.Transient(err, "decode discord create message response")
	}
	return res.ID, nil
}

func (a *DiscordAdapter) editMessage(ctx context.Context, messageID, content string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", a.channelID, messageID)
	_, err := a.call(ctx, http.MethodPatch, path, map[string]interface{}{"content": content})
	return err
}

func (a *DiscordAdapter) call(ctx context.Context, method, path string, params map[string]interface{}) (json.RawMessage, error) {
	result, err := a.breaker.Execute(func() (json.RawMessage, error) {
		return a.do(ctx, method, path, params)
	})
	if err != nil {
		return nil, errs.Transient(err, "discord API call failed")
	}
	return result, nil
}

func (a *DiscordAdapter) do(ctx context.Context, method, path string, params map[string]interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal discord request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, discordAPIBase+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+a.token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read discord response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("discord %s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
