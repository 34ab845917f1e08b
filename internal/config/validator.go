// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError collects every field-level failure found in one pass,
// rather than failing fast on the first.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity, collecting every problem found.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateRequired(cfg, errs)
	v.validateStore(cfg, errs)
	v.validateQueue(cfg, errs)
	v.validateAdapters(cfg, errs)
	v.validateRoles(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateRequired(cfg *Config, errs *ValidationError) {
	if cfg.Computer.Name == "" {
		errs.Add("computer.name", "is required")
	}
	if cfg.Server.SocketPath == "" {
		errs.Add("server.socket_path", "is required")
	}
}

func (v *Validator) validateStore(cfg *Config, errs *ValidationError) {
	if cfg.Store.Path == "" {
		errs.Add("store.path", "is required")
	}
	if cfg.Store.BusyTimeoutMS < 0 {
		errs.Add("store.busy_timeout_ms", "must be non-negative")
	}
	if cfg.Store.LockTimeoutSec <= 0 {
		errs.Add("store.lock_timeout_sec", "must be positive")
	}
}

func (v *Validator) validateQueue(cfg *Config, errs *ValidationError) {
	if cfg.Queue.BaseBackoffMS <= 0 {
		errs.Add("queue.base_backoff_ms", "must be positive")
	}
	if cfg.Queue.MaxBackoffSec <= 0 {
		errs.Add("queue.max_backoff_sec", "must be positive")
	}
	if cfg.Queue.FetchBatch <= 0 {
		errs.Add("queue.fetch_batch", "must be positive")
	}
}

func (v *Validator) validateAdapters(cfg *Config, errs *ValidationError) {
	if cfg.Adapters.Telegram.Enabled && cfg.Adapters.Telegram.TokenEnvVar == "" {
		errs.Add("adapters.telegram.token_env_var", "is required when telegram is enabled")
	}
	if cfg.Adapters.Telegram.Enabled && cfg.Adapters.Telegram.ChatID == 0 {
		errs.Add("adapters.telegram.chat_id", "is required when telegram is enabled")
	}
	if cfg.Adapters.Discord.Enabled && cfg.Adapters.Discord.TokenEnvVar == "" {
		errs.Add("adapters.discord.token_env_var", "is required when discord is enabled")
	}
	if cfg.Adapters.Discord.Enabled && cfg.Adapters.Discord.ChannelID == "" {
		errs.Add("adapters.discord.channel_id", "is required when discord is enabled")
	}
}

var validSystemRoles = map[string]bool{"orchestrator": true, "worker": true, "observer": true, "peer": true}
var validHumanRoles = map[string]bool{"admin": true, "member": true, "worker": true, "help-desk": true, "customer": true}

func (v *Validator) validateRoles(cfg *Config, errs *ValidationError) {
	for endpoint, roles := range cfg.Roles.Overrides {
		for _, r := range roles.SystemRoles {
			if !validSystemRoles[r] {
				errs.Add(fmt.Sprintf("roles.overrides[%s].system_roles", endpoint), "unknown system role "+r)
			}
		}
		for _, r := range roles.HumanRoles {
			if !validHumanRoles[r] {
				errs.Add(fmt.Sprintf("roles.overrides[%s].human_roles", endpoint), "unknown human role "+r)
			}
		}
	}
}
