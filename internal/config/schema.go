// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading, validation and
// hot-reload for the teleclaude daemon.
package config

// Config is the root configuration structure for the daemon.
type Config struct {
	Version   string          `json:"version"`
	Computer  ComputerConfig  `json:"computer"`
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Queue     QueueConfig     `json:"queue"`
	Adapters  AdaptersConfig  `json:"adapters"`
	Roles     RolesConfig     `json:"roles"`
	Retention RetentionConfig `json:"retention"`
}

// ComputerConfig identifies the computer this daemon runs on.
type ComputerConfig struct {
	Name        string `json:"name"`
	ProjectPath string `json:"project_path"`
}

// ServerConfig configures the local control-plane socket.
type ServerConfig struct {
	SocketPath string `json:"socket_path"`
}

// StoreConfig configures the durable store.
type StoreConfig struct {
	Path           string `json:"path"`
	BusyTimeoutMS  int    `json:"busy_timeout_ms"`
	LockTimeoutSec int    `json:"lock_timeout_sec"`
}

// QueueConfig configures inbound/outbound worker behavior.
type QueueConfig struct {
	BaseBackoffMS int `json:"base_backoff_ms"`
	MaxBackoffSec int `json:"max_backoff_sec"`
	FetchBatch    int `json:"fetch_batch"`
}

// AdaptersConfig configures the transport adapters registered with the fanout.
type AdaptersConfig struct {
	Telegram TelegramAdapterConfig `json:"telegram"`
	Discord  DiscordAdapterConfig  `json:"discord"`
	Peer     PeerAdapterConfig     `json:"peer"`
	WebUI    WebUIAdapterConfig    `json:"webui"`
}

// TelegramAdapterConfig configures the Telegram adapter.
type TelegramAdapterConfig struct {
	Enabled     bool   `json:"enabled"`
	TokenEnvVar string `json:"token_env_var"`
	ChatID      int64  `json:"chat_id"`
	RatePerSec  int    `json:"rate_per_sec"`
}

// DiscordAdapterConfig configures the Discord adapter.
type DiscordAdapterConfig struct {
	Enabled     bool   `json:"enabled"`
	TokenEnvVar string `json:"token_env_var"`
	ChannelID   string `json:"channel_id"`
	RatePerSec  int    `json:"rate_per_sec"`
}

// PeerAdapterConfig configures the peer-daemon link adapter.
type PeerAdapterConfig struct {
	Enabled bool     `json:"enabled"`
	Peers   []string `json:"peers"`
}

// WebUIAdapterConfig configures the local web UI adapter.
type WebUIAdapterConfig struct {
	Enabled bool `json:"enabled"`
}

// RolesConfig overrides the built-in per-endpoint role clearance matrix.
type RolesConfig struct {
	Overrides map[string]EndpointRoles `json:"overrides"`
}

// EndpointRoles names the system/human roles cleared for an endpoint.
type EndpointRoles struct {
	SystemRoles []string `json:"system_roles"`
	HumanRoles  []string `json:"human_roles"`
}

// RetentionConfig configures cleanup sweeps.
type RetentionConfig struct {
	InboundHours int `json:"inbound_hours"`
	OutboxHours  int `json:"outbox_hours"`
}
