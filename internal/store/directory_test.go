// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/teleclaude/teleclaude/internal/model"
)

func TestUpsertComputerIsIdempotent(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	c := model.Computer{Name: "mainframe", CreatedAt: now}
	require.NoError(t, s.UpsertComputer(t.Context(), c))
	require.NoError(t, s.UpsertComputer(t.Context(), c))

	got, err := s.ListComputers(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestUpsertProjectUpdatesName(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	require.NoError(t, s.UpsertProject(t.Context(), model.Project{Path: "/srv/app", Name: "app", CreatedAt: now}))
	require.NoError(t, s.UpsertProject(t.Context(), model.Project{Path: "/srv/app", Name: "renamed", CreatedAt: now}))

	got, err := s.ListProjects(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "renamed", got[0].Name)
}

func TestUpsertPersonAndGet(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	require.NoError(t, s.UpsertPerson(t.Context(), model.Person{ID: "p1", Name: "Ada", HumanRole: model.HumanRoleAdmin, CreatedAt: now}))

	got, err := s.GetPerson(t.Context(), "p1")
	require.NoError(t, err)
	require.Equal(t, "Ada", got.Name)
	require.Equal(t, model.HumanRoleAdmin, got.HumanRole)

	miss, err := s.GetPerson(t.Context(), "no-such-person")
	require.NoError(t, err)
	require.Nil(t, miss)
}

func TestUpsertChannelUniquePerAdapter(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock()

	require.NoError(t, s.UpsertChannel(t.Context(), model.Channel{ID: "c1", Adapter: "discord", Name: "general", CreatedAt: now}))
	require.NoError(t, s.UpsertChannel(t.Context(), model.Channel{ID: "c2", Adapter: "telegram", Name: "general", CreatedAt: now}))
	require.NoError(t, s.UpsertChannel(t.Context(), model.Channel{ID: "c1-again", Adapter: "discord", Name: "general", CreatedAt: now}))

	all, err := s.ListChannels(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	discordOnly, err := s.ListChannels(t.Context(), "discord")
	require.NoError(t, err)
	require.Len(t, discordOnly, 1)
	require.Equal(t, "c1", discordOnly[0].ID)
}
