// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires every component package into the running teleclaude
// daemon: durable store, session registry, multiplexer bridge, inbound
// queue, outbound worker and observer, adapter fanout, event pipeline, and
// the local control-plane HTTP server. It follows the same
// New/Initialize/Start/Run/Shutdown lifecycle shape the underlying project
// structure was built around, generalized from one interactive desktop tool
// to a headless multi-computer daemon.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teleclaude/teleclaude/internal/adapter"
	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/control"
	"github.com/teleclaude/teleclaude/internal/control/handlers"
	"github.com/teleclaude/teleclaude/internal/events"
	"github.com/teleclaude/teleclaude/internal/inbound"
	"github.com/teleclaude/teleclaude/internal/model"
	"github.com/teleclaude/teleclaude/internal/multiplexer"
	"github.com/teleclaude/teleclaude/internal/outbound"
	"github.com/teleclaude/teleclaude/internal/pipeline"
	"github.com/teleclaude/teleclaude/internal/session"
	"github.com/teleclaude/teleclaude/internal/store"
)

// Options configures App construction.
type Options struct {
	// ConfigPath names the HJSON config file to load. Auto-detected via
	// config.Loader.FindConfig when empty.
	ConfigPath string
	// Version is the daemon's own version string, surfaced nowhere yet but
	// kept for parity with the reporting the control plane's context.help
	// endpoint may grow.
	Version string
	Logger  *zap.Logger
}

// App is the running daemon: every subsystem plus the glue that starts and
// stops them in the right order.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	logger     *zap.Logger

	cfg     *config.Config
	watcher *config.Watcher

	store     *store.Store
	registry  *session.Registry
	bridge    *multiplexer.Bridge
	adapters  *adapter.Registry
	eventBus  *events.MemoryEventBus
	pipeline  *pipeline.Pipeline
	queue     *inbound.Queue
	delivery  *inbound.Delivery
	observer  *outbound.Observer
	outWorker *outbound.Worker
	webui     *adapter.WebUIAdapter

	listener   net.Listener
	httpServer *http.Server

	retentionCancel context.CancelFunc
	retentionDone   chan struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// New constructs an App. The config is not loaded until Initialize, mirroring
// the reference daemon's New/Initialize split so flag/env overrides can still
// be applied in between.
func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		found, err := config.NewLoader().FindConfig()
		if err != nil {
			return nil, err
		}
		configPath = found
	}

	return &App{
		configPath: configPath,
		version:    opts.Version,
		logger:     logger,
		done:       make(chan struct{}),
	}, nil
}

// Initialize loads configuration and constructs every subsystem, wiring them
// to each other through the package's narrowed interfaces. Nothing is
// started yet — that is Start's job, so a caller can inspect or mutate the
// assembled App (tests do exactly this) before anything touches the
// filesystem or network.
func (app *App) Initialize(ctx context.Context) error {
	cfg, err := config.NewLoader().LoadWithDefaults(ctx, app.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app.cfg = cfg

	st, err := store.Open(cfg.Store.Path, store.Options{
		BusyTimeout: time.Duration(cfg.Store.BusyTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	app.store = st

	app.registry = session.New(st, nil)
	app.bridge = multiplexer.NewBridge(multiplexer.NewRealTmuxExecutor(), multiplexer.Options{})
	app.adapters = adapter.New(st, app.logger)
	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: 1000,
		HistoryMaxAge:    24 * time.Hour,
		Logger:           app.logger,
	})

	app.registerAdapters(cfg.Adapters)

	app.pipeline = pipeline.New(st, nil, app.logger, cfg.Computer.ProjectPath,
		pipeline.Dedup{},
		pipeline.NotificationProjector{},
		pipeline.NewPrepareQualityRunner(),
	)

	app.outWorker = outbound.NewWorker(st, app.registry, app.adapters, nil, app.logger)
	app.observer = outbound.NewObserver(app.bridge, publisherWithDiagnostics(app.pipeline, app.eventBus), nil, app.logger, cfg.Computer.Name)

	app.delivery = inbound.NewDelivery(app.registry, app.bridge, app.bridge, app.adapters, app.observer, nil, app.logger)
	app.queue = inbound.New(st, app.delivery, nil, app.logger)

	sessions := newSessionService(app.registry, app.bridge, st, st.Now, app.logger)

	router := control.NewRouter(control.Dependencies{
		Sessions: app.registry,
		Handlers: handlers.Dependencies{
			Sessions:    sessions,
			Inbound:     newInboundEnqueuer(app.queue),
			Multiplexer: app.bridge,
			Todos:       st,
			Directory:   st,
			Channels:    app.adapters,
			IDs:         sessionIDGenerator{sessions: app.registry},
			Clock:       st.Now,
			Logger:      app.logger,
		},
		Matrix: control.NewMatrix(cfg.Roles),
		Logger: app.logger,
	})

	mux := http.NewServeMux()
	if app.webui != nil {
		mux.HandleFunc("/ws", app.webui.ServeHTTP)
	}
	mux.Handle("/", router)

	app.httpServer = &http.Server{Handler: mux}

	app.watcher = config.NewWatcher(app.configPath, app.onConfigReload)

	return nil
}

// registerAdapters constructs and registers every transport adapter the
// loaded config enables, so disabled adapters carry no runtime cost beyond
// the zero-value config check (§4.7's fanout is a no-op for an adapter that
// was never registered).
func (app *App) registerAdapters(cfg config.AdaptersConfig) {
	if cfg.Telegram.Enabled {
		app.adapters.Register(adapter.NewTelegramAdapter(cfg.Telegram.TokenEnvVar, cfg.Telegram.ChatID, cfg.Telegram.RatePerSec, app.logger))
	}
	if cfg.Discord.Enabled {
		app.adapters.Register(adapter.NewDiscordAdapter(cfg.Discord.TokenEnvVar, cfg.Discord.ChannelID, cfg.Discord.RatePerSec, app.logger))
	}
	if cfg.Peer.Enabled {
		app.adapters.Register(adapter.NewPeerAdapter())
	}
	if cfg.WebUI.Enabled {
		app.webui = adapter.NewWebUIAdapter(app.logger)
		app.adapters.Register(app.webui)
	}
}

// onConfigReload stores a hot-reloaded config. The retention sweep reads its
// retention settings at the next pass; everything built in Initialize (the
// role matrix, store path, adapter credentials) keeps its startup values
// until a restart.
func (app *App) onConfigReload(cfg *config.Config) {
	app.mu.Lock()
	app.cfg = cfg
	app.mu.Unlock()
	app.logger.Info("config reloaded")
}

// sessionIDGenerator adapts session.Registry's ID minting to
// handlers.IDGenerator, so todo creation mints the same kind of
// time-sortable id sessions do, without the control plane importing
// internal/idgen directly.
type sessionIDGenerator struct {
	sessions *session.Registry
}

func (g sessionIDGenerator) Next() (string, error) {
	return g.sessions.NewSessionID()
}

// publisherWithDiagnostics wraps a pipeline so every published envelope also
// fans out to the in-process event bus, giving local diagnostics (a future
// CLI tail, the websocket UI's activity log) a feed independent of the
// durable outbox (§4.5's cartridge chain only ever needed the Store side).
// GroupKey and IdempotencyKey carry through unchanged, so the in-process
// bus applies the same coalescing and dedup to this feed that the
// Dedup/NotificationProjector cartridges already applied on the Store side.
type diagnosticsPublisher struct {
	next *pipeline.Pipeline
	bus  *events.MemoryEventBus
}

func publisherWithDiagnostics(next *pipeline.Pipeline, bus *events.MemoryEventBus) *diagnosticsPublisher {
	return &diagnosticsPublisher{next: next, bus: bus}
}

func (p *diagnosticsPublisher) Publish(ctx context.Context, env model.EventEnvelope, targetAdapters ...string) error {
	if err := p.next.Publish(ctx, env, targetAdapters...); err != nil {
		return err
	}
	_ = p.bus.Publish(ctx, events.Event{
		Type:           env.Type,
		SessionID:      env.ProducerID,
		GroupKey:       env.GroupKey,
		IdempotencyKey: env.IdempotencyKey,
		Payload:        map[string]interface{}{"envelope_id": env.EnvelopeID},
	})
	return nil
}

// Start begins every background loop: inbound queue recovery, the outbound
// worker, the config watcher, and the retention sweep, then serves the
// control-plane HTTP API on its unix socket in the background.
func (app *App) Start(ctx context.Context) error {
	if err := app.queue.Startup(ctx); err != nil {
		return fmt.Errorf("inbound queue startup: %w", err)
	}

	// A plain errgroup.Group, not WithContext: these two starts each spawn
	// their own long-lived background goroutine keyed off ctx directly.
	// Deriving a child context here would have errgroup cancel it the
	// instant both Go funcs return (which they do immediately, since
	// starting is non-blocking), killing the worker it just started.
	var g errgroup.Group
	g.Go(func() error {
		app.outWorker.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return app.watcher.Start(ctx)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("start subsystems: %w", err)
	}

	app.startRetentionSweep(ctx)

	if err := os.RemoveAll(app.cfg.Server.SocketPath); err != nil {
		return fmt.Errorf("clear stale socket: %w", err)
	}
	listener, err := net.Listen("unix", app.cfg.Server.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	app.listener = listener

	go func() {
		app.logger.Info("control plane listening", zap.String("socket", app.cfg.Server.SocketPath))
		if err := app.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			app.logger.Error("control plane server error", zap.Error(err))
		}
	}()

	return nil
}

// startRetentionSweep runs the inbound/outbox/envelope cleanup on a fixed
// interval per §4 retention policy, cancellable from Shutdown.
func (app *App) startRetentionSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	app.retentionCancel = cancel
	app.retentionDone = make(chan struct{})

	go func() {
		defer close(app.retentionDone)
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				app.runRetentionSweep(sweepCtx)
			}
		}
	}()
}

func (app *App) runRetentionSweep(ctx context.Context) {
	app.mu.RLock()
	cfg := app.cfg.Retention
	app.mu.RUnlock()

	now := app.store.Now()
	if n, err := app.store.CleanupInbound(ctx, now.Add(-time.Duration(cfg.InboundHours)*time.Hour)); err != nil {
		app.logger.Warn("inbound retention sweep failed", zap.Error(err))
	} else if n > 0 {
		app.logger.Info("inbound retention sweep", zap.Int64("deleted", n))
	}
	if n, err := app.store.CleanupOutbox(ctx, now.Add(-time.Duration(cfg.OutboxHours)*time.Hour)); err != nil {
		app.logger.Warn("outbox retention sweep failed", zap.Error(err))
	} else if n > 0 {
		app.logger.Info("outbox retention sweep", zap.Int64("deleted", n))
	}
	if n, err := app.store.CleanupEnvelopes(ctx, now.Add(-time.Duration(cfg.OutboxHours)*time.Hour)); err != nil {
		app.logger.Warn("envelope retention sweep failed", zap.Error(err))
	} else if n > 0 {
		app.logger.Info("envelope retention sweep", zap.Int64("deleted", n))
	}
}

// Run initializes, starts, and blocks until a termination signal, an
// externally-cancelled ctx, or a programmatic Stop.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		app.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		app.logger.Info("context cancelled, shutting down")
	case <-app.done:
		app.logger.Info("shutdown requested")
	}

	return app.Shutdown(context.Background())
}

// Shutdown tears every subsystem down in the reverse order Start brought
// them up: stop accepting new control-plane connections first, then drain
// workers, then close the store last so in-flight queries against it never
// see a closed handle.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("control plane shutdown error", zap.Error(err))
		}
	}

	if app.retentionCancel != nil {
		app.retentionCancel()
		<-app.retentionDone
	}

	if app.watcher != nil {
		app.watcher.Stop()
	}

	if app.outWorker != nil {
		app.outWorker.Shutdown()
	}
	if app.observer != nil {
		app.observer.Shutdown()
	}
	if app.queue != nil {
		app.queue.Shutdown()
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Error("store close error", zap.Error(err))
		}
	}

	_ = app.logger.Sync()
	return nil
}

// Stop signals Run to shut down. Safe to call multiple times or before Run
// has started — the buffered-by-close semantics mean a call racing Run's
// select still wakes it.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
