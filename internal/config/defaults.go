// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

// applyDefaults fills zero-valued fields with operational defaults, the same
// shape trellis's loader uses before handing the config to callers.
func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.Server.SocketPath == "" {
		cfg.Server.SocketPath = "/var/run/teleclaude/control.sock"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "teleclaude.db"
	}
	if cfg.Store.BusyTimeoutMS <= 0 {
		cfg.Store.BusyTimeoutMS = 5000
	}
	if cfg.Store.LockTimeoutSec <= 0 {
		cfg.Store.LockTimeoutSec = 300
	}
	if cfg.Queue.BaseBackoffMS <= 0 {
		cfg.Queue.BaseBackoffMS = 500
	}
	if cfg.Queue.MaxBackoffSec <= 0 {
		cfg.Queue.MaxBackoffSec = 300
	}
	if cfg.Queue.FetchBatch <= 0 {
		cfg.Queue.FetchBatch = 1
	}
	if cfg.Adapters.Telegram.RatePerSec <= 0 {
		cfg.Adapters.Telegram.RatePerSec = 20
	}
	if cfg.Adapters.Discord.RatePerSec <= 0 {
		cfg.Adapters.Discord.RatePerSec = 50
	}
	if cfg.Retention.InboundHours <= 0 {
		cfg.Retention.InboundHours = 72
	}
	if cfg.Retention.OutboxHours <= 0 {
		cfg.Retention.OutboxHours = 72
	}
}
