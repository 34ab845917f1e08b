// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/model"
)

// SessionRegistry is the subset of internal/session.Registry the control
// plane's session endpoints need.
type SessionRegistry interface {
	Create(ctx context.Context, p SessionCreateParams) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context) ([]model.Session, error)
	Transition(ctx context.Context, id string, state model.SessionState) error
}

// SessionCreateParams mirrors internal/session.Registry.CreateParams,
// re-declared here so this package does not need to import internal/session
// just for the parameter shape.
type SessionCreateParams struct {
	Computer       string
	ProjectPath    string
	Title          string
	SystemRole     model.SystemRole
	HumanRole      model.HumanRole
	OriginAdapter  string
	OutputSinkPath string
}

// InboundEnqueuer accepts a new inbound message for delivery to a session's
// hosted agent. Implemented by internal/inbound.Queue via a thin adapter in
// internal/app (its EnqueueInboundParams lives in internal/store).
type InboundEnqueuer interface {
	Enqueue(ctx context.Context, sessionID, origin, content string) error
}

// MultiplexerControl exposes the session lifecycle operations (§4.7) the
// control plane needs beyond what the inbound queue already owns.
type MultiplexerControl interface {
	KillSession(ctx context.Context, sessionID string) error
	PollOutput(ctx context.Context, sessionID, outputSinkPath string) ([]byte, error)
}

// TodoCatalog is the subset of internal/store's Todo CRUD the control plane
// exposes directly — deliberately shallow, per the spec's Non-goal on
// workflow state-machine semantics.
type TodoCatalog interface {
	CreateTodo(ctx context.Context, t model.Todo) error
	ListTodos(ctx context.Context, projectPath string) ([]model.Todo, error)
	MarkTodoPhase(ctx context.Context, id string, phase model.TodoPhase, now time.Time) error
	SetTodoDeps(ctx context.Context, id string, dependsOn []string, now time.Time) error
}

// Directory is the subset of internal/store's computer/project/channel
// directory the control plane exposes as read-only listings, plus the
// publish primitive for channels.
type Directory interface {
	ListComputers(ctx context.Context) ([]model.Computer, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListChannels(ctx context.Context, adapter string) ([]model.Channel, error)
}

// ChannelPublisher delivers a message to an adapter-scoped channel.
// Implemented by internal/adapter.Registry, which internal/app passes in
// directly; declaring the interface here keeps internal/control from
// importing internal/adapter (mirrors the narrowing pattern used throughout).
type ChannelPublisher interface {
	PublishToChannel(ctx context.Context, adapter, channelID, text string) error
}

// IDGenerator mints session/todo identifiers. Implemented by
// internal/idgen.Generator.
type IDGenerator interface {
	Next() (string, error)
}

// Clock supplies the current time, deterministic under test.
type Clock func() time.Time

// Dependencies wires every backend the handlers translate requests onto.
type Dependencies struct {
	Sessions   SessionRegistry
	Inbound    InboundEnqueuer
	Multiplexer MultiplexerControl
	Todos      TodoCatalog
	Directory  Directory
	Channels   ChannelPublisher
	IDs        IDGenerator
	Clock      Clock
	Logger     *zap.Logger
}

// Handlers groups every control-plane HTTP handler behind one receiver, so
// router.go can register methods directly as http.HandlerFunc values.
type Handlers struct {
	deps Dependencies
}

// New constructs Handlers. clock defaults to time.Now if nil.
func New(deps Dependencies) *Handlers {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handlers{deps: deps}
}
