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

const telegramAPIBase = "https://api.telegram.org"

// telegramMeta is what TelegramAdapter persists in a session's
// adapter_metadata["telegram"] slice: just enough to edit the message later.
type telegramMeta struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// TelegramAdapter posts session output to a Telegram chat, editing the same
// message in place for every update until the thread is broken (§4.4).
type TelegramAdapter struct {
	httpClient *http.Client
	token      string
	chatID     int64
	limiter    *catrate.Limiter
	breaker    *gobreaker.CircuitBreaker[json.RawMessage]
	logger     *zap.Logger
}

// NewTelegramAdapter builds a Telegram adapter from config. tokenEnvVar names
// the environment variable holding the bot token (secrets never live in the
// config file itself). chatID is the single chat this daemon's sessions are
// mirrored into.
func NewTelegramAdapter(tokenEnvVar string, chatID int64, ratePerSec int, logger *zap.Logger) *TelegramAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	a := &TelegramAdapter{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		token:      os.Getenv(tokenEnvVar),
		chatID:     chatID,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: ratePerSec,
		}),
		logger: logger,
	}
	a.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "telegram",
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
func (a *TelegramAdapter) Name() string { return "telegram" }

// SendOutputUpdate implements Adapter: posts a new message on the first
// call, edits the existing one on every call after.
func (a *TelegramAdapter) SendOutputUpdate(ctx context.Context, sessionID, text string, startedAt, lastChangedAt time.Time, meta json.RawMessage) (json.RawMessage, error) {
	if _, ok := a.limiter.Allow(sessionID); !ok {
		return meta, errs.Transient(nil, "telegram rate limit exceeded")
	}

	var prior telegramMeta
	hasPrior := len(meta) > 0
	if hasPrior {
		if err := json.Unmarshal(meta, &prior); err != nil {
			hasPrior = false
		}
	}

	if hasPrior {
		if err := a.editMessage(ctx, prior.ChatID, prior.MessageID, text); err != nil {
			return meta, err
		}
		return meta, nil
	}

	msgID, err := a.sendMessage(ctx, a.chatID, text)
	if err != nil {
		return meta, err
	}
	return json.Marshal(telegramMeta{ChatID: a.chatID, MessageID: msgID})
}

// NotifyObserverUpdate implements Adapter: posts a short pointer message
// noting that another origin delivered new input (§4.3 step 5).
func (a *TelegramAdapter) NotifyObserverUpdate(ctx context.Context, sessionID string, row model.InboundRow) error {
	text := fmt.Sprintf("[%s] new input delivered via %s", sessionID, row.Origin)
	_, err := a.sendMessage(ctx, a.chatID, text)
	return err
}

// PublishToChannel implements Adapter. Telegram's config binds this daemon
// to a single chat (§6), so channelID is ignored; the message always goes
// to the configured chat.
func (a *TelegramAdapter) PublishToChannel(ctx context.Context, channelID, text string) error {
	_, err := a.sendMessage(ctx, a.chatID, text)
	return err
}

type telegramSendResult struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int `json:"message_id"`
	} `json:"result"`
}

func (a *TelegramAdapter) sendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	body, err := a.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return 0, err
	}
	var res telegramSendResult
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, errs.Transient(err, "decode telegram sendMessage response")
	}
	return res.Result.MessageID, nil
}

func (a *TelegramAdapter) editMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := a.call(ctx, "editMessageText", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	})
	return err
}

func (a *TelegramAdapter) call(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, error) {
	result, err := a.breaker.Execute(func() (json.RawMessage, error) {
		return a.post(ctx, method, params)
	})
	if err != nil {
		return nil, errs.Transient(err, "telegram API call failed")
	}
	return result, nil
}

func (a *TelegramAdapter) post(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", telegramAPIBase, a.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read telegram response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("telegram %s failed with status %d: %s", method, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
