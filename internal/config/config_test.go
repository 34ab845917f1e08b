// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "teleclaude.hjson")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeConfig(t, `{
		computer: { name: mainframe, project_path: /srv/project }
		server: { socket_path: /tmp/teleclaude.sock }
	}`)

	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "mainframe", cfg.Computer.Name)
	require.Equal(t, 5000, cfg.Store.BusyTimeoutMS)
	require.Equal(t, 300, cfg.Store.LockTimeoutSec)
	require.Equal(t, 72, cfg.Retention.InboundHours)
}

func TestLoadWithDefaultsRejectsMissingComputerName(t *testing.T) {
	path := writeConfig(t, `{ server: { socket_path: /tmp/teleclaude.sock } }`)

	_, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.Error(t, err)
}

func TestValidatorCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := NewValidator().Validate(cfg)
	require.Error(t, err)

	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(ve.Errors), 2)
}

func TestValidatorRejectsUnknownRole(t *testing.T) {
	cfg := &Config{
		Computer: ComputerConfig{Name: "mainframe"},
		Server:   ServerConfig{SocketPath: "/tmp/teleclaude.sock"},
		Store:    StoreConfig{Path: "db.sqlite", BusyTimeoutMS: 5000, LockTimeoutSec: 300},
		Queue:    QueueConfig{BaseBackoffMS: 500, MaxBackoffSec: 300, FetchBatch: 1},
		Roles: RolesConfig{Overrides: map[string]EndpointRoles{
			"sessions.create": {SystemRoles: []string{"admin"}},
		}},
	}
	err := NewValidator().Validate(cfg)
	require.Error(t, err)
}

func TestFindConfigMissing(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)
	require.NoError(t, os.Chdir(dir))

	_, err = NewLoader().FindConfig()
	require.Error(t, err)
}
