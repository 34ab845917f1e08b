// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/model"
)

// EndpointRoles names the system/human roles cleared for an endpoint. An
// empty slice means "any role" per §4.6.
type EndpointRoles struct {
	SystemRoles []model.SystemRole
	HumanRoles  []model.HumanRole
}

// clearance is the built-in, per-endpoint role matrix. Role markers live
// here and in the Store's session records — never in a file the agent can
// overwrite (§4.6).
var clearance = map[string]EndpointRoles{
	"sessions.list":      {},
	"sessions.create":    {SystemRoles: []model.SystemRole{model.SystemRoleOrchestrator}},
	"sessions.send":      {},
	"sessions.tail":      {},
	"sessions.end":       {SystemRoles: []model.SystemRole{model.SystemRoleOrchestrator}},
	"sessions.run":       {SystemRoles: []model.SystemRole{model.SystemRoleOrchestrator, model.SystemRoleWorker}},
	"sessions.unsubscribe": {},
	"sessions.file":       {},
	"sessions.widget":     {},
	"sessions.escalate":   {},
	"sessions.result":     {},
	"todos.list":          {},
	"todos.prepare":       {},
	"todos.work":          {},
	"todos.maintain":      {},
	"todos.mark_phase":    {},
	"todos.set_deps":      {},
	"computers.list":      {},
	"projects.list":       {},
	"agents.status":       {},
	"agents.availability": {},
	"channels.list":       {},
	"channels.publish":    {SystemRoles: []model.SystemRole{model.SystemRoleOrchestrator}},
	"context.query":       {},
	"context.help":        {},
	"deploy":              {SystemRoles: []model.SystemRole{model.SystemRoleOrchestrator}, HumanRoles: []model.HumanRole{model.HumanRoleAdmin}},
}

// Matrix resolves endpoint role clearance, applying any config overrides on
// top of the built-in defaults.
type Matrix struct {
	overrides map[string]EndpointRoles
}

// NewMatrix builds a Matrix from RolesConfig overrides.
func NewMatrix(cfg config.RolesConfig) *Matrix {
	overrides := make(map[string]EndpointRoles, len(cfg.Overrides))
	for endpoint, o := range cfg.Overrides {
		overrides[endpoint] = EndpointRoles{
			SystemRoles: toSystemRoles(o.SystemRoles),
			HumanRoles:  toHumanRoles(o.HumanRoles),
		}
	}
	return &Matrix{overrides: overrides}
}

// Clearance returns the role clearance for an endpoint, preferring a config
// override over the built-in default.
func (m *Matrix) Clearance(endpoint string) EndpointRoles {
	if o, ok := m.overrides[endpoint]; ok {
		return o
	}
	return clearance[endpoint]
}

// Allows reports whether sess's system/human role is cleared for endpoint.
// An empty role list on either axis means "any role on that axis".
func (m *Matrix) Allows(endpoint string, systemRole model.SystemRole, humanRole model.HumanRole) bool {
	roles := m.Clearance(endpoint)
	if len(roles.SystemRoles) > 0 && !containsSystemRole(roles.SystemRoles, systemRole) {
		return false
	}
	if len(roles.HumanRoles) > 0 && !containsHumanRole(roles.HumanRoles, humanRole) {
		return false
	}
	return true
}

func containsSystemRole(roles []model.SystemRole, role model.SystemRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func containsHumanRole(roles []model.HumanRole, role model.HumanRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func toSystemRoles(in []string) []model.SystemRole {
	out := make([]model.SystemRole, len(in))
	for i, s := range in {
		out[i] = model.SystemRole(s)
	}
	return out
}

func toHumanRoles(in []string) []model.HumanRole {
	out := make([]model.HumanRole, len(in))
	for i, s := range in {
		out[i] = model.HumanRole(s)
	}
	return out
}
