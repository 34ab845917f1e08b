// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/model"
)

func TestMatrixAllowsAnyRoleWhenEndpointUnconstrained(t *testing.T) {
	m := NewMatrix(config.RolesConfig{})

	require.True(t, m.Allows("sessions.list", model.SystemRoleWorker, model.HumanRoleCustomer))
	require.True(t, m.Allows("sessions.list", model.SystemRoleOrchestrator, model.HumanRoleAdmin))
}

func TestMatrixDeniesSystemRoleNotCleared(t *testing.T) {
	m := NewMatrix(config.RolesConfig{})

	require.False(t, m.Allows("sessions.create", model.SystemRoleWorker, model.HumanRoleAdmin))
	require.True(t, m.Allows("sessions.create", model.SystemRoleOrchestrator, model.HumanRoleAdmin))
}

func TestMatrixDeniesHumanRoleNotCleared(t *testing.T) {
	m := NewMatrix(config.RolesConfig{})

	require.False(t, m.Allows("deploy", model.SystemRoleOrchestrator, model.HumanRoleMember))
	require.True(t, m.Allows("deploy", model.SystemRoleOrchestrator, model.HumanRoleAdmin))
}

func TestMatrixConfigOverrideReplacesBuiltinDefault(t *testing.T) {
	m := NewMatrix(config.RolesConfig{Overrides: map[string]config.EndpointRoles{
		"sessions.create": {SystemRoles: []string{"worker"}},
	}})

	require.True(t, m.Allows("sessions.create", model.SystemRoleWorker, model.HumanRoleMember))
	require.False(t, m.Allows("sessions.create", model.SystemRoleOrchestrator, model.HumanRoleMember))
}

func TestMatrixUnknownEndpointHasNoClearance(t *testing.T) {
	m := NewMatrix(config.RolesConfig{})

	require.True(t, m.Allows("nonexistent.endpoint", model.SystemRoleWorker, model.HumanRoleCustomer))
}
