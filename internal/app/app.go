// Package app assembles the activation core's components into a single
// instance owned by the caller, avoiding the module-level singletons the
// teacher's own internal/events package used for its Nostr publisher
// (sync.Once-guarded global state) — per the design note that this core
// should have no global state, only an explicitly constructed and
// passed App.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/cooldown"
	"github.com/jobflow-ai/activation-core/internal/events"
	"github.com/jobflow-ai/activation-core/internal/executor"
	"github.com/jobflow-ai/activation-core/internal/heartbeat"
	"github.com/jobflow-ai/activation-core/internal/intent"
	"github.com/jobflow-ai/activation-core/internal/lifecycle"
	"github.com/jobflow-ai/activation-core/internal/persistence"
	"github.com/jobflow-ai/activation-core/internal/pulse"
	"github.com/jobflow-ai/activation-core/internal/router"
	"github.com/jobflow-ai/activation-core/internal/telemetry"
)

// Config is everything needed to build an App.
type Config struct {
	TownFilePath    string
	OverlayPath     string
	SQLDSN          string // empty => use an in-memory store
	OTLPEndpoint    string // empty => no-op metrics
	ReplayBufferLen int
	ProcessEnv      map[string]string
	ModelsFilePath  string // optional; when set, bots execute via internal/llm instead of a subprocess
}

// App owns one instance each of every activation-core component.
// Nothing in this package is a package-level variable; every caller
// (cmd/activation-core/main.go, tests) constructs its own App.
type App struct {
	Bus       *events.Bus
	Matcher   *intent.Matcher
	Guard     *cooldown.Guard
	Manager   *lifecycle.Manager
	Router    *router.Router
	Pulse     *pulse.Runner
	Heartbeat *heartbeat.Monitor
	Store     persistence.Store
	Metrics   *telemetry.Metrics

	bots map[string]*config.BotConfig

	mu          sync.RWMutex
	shutdownFns []func(context.Context) error
}

// New constructs an App from cfg but does not start any background
// loops yet — call Run for that.
func New(ctx context.Context, cfg Config) (*App, error) {
	town, err := config.LoadTownFile(cfg.TownFilePath)
	if err != nil {
		return nil, fmt.Errorf("loading town config: %w", err)
	}
	overlay, err := config.LoadRuntimeOverlay(cfg.OverlayPath)
	if err != nil {
		return nil, fmt.Errorf("loading runtime overlay: %w", err)
	}
	overlay.Apply(town.Bots)

	var metrics *telemetry.Metrics
	var shutdownFns []func(context.Context) error
	if cfg.OTLPEndpoint != "" {
		m, shutdown, err := telemetry.NewOTLPHTTP(ctx, cfg.OTLPEndpoint)
		if err != nil {
			log.Printf("[app] OTLP metrics unavailable (%v), falling back to no-op", err)
			metrics = telemetry.NewNoop()
		} else {
			metrics = m
			shutdownFns = append(shutdownFns, shutdown)
		}
	} else {
		metrics = telemetry.NewNoop()
	}

	var store persistence.Store
	if cfg.SQLDSN != "" {
		sqlStore, err := persistence.OpenSQLStore(ctx, cfg.SQLDSN)
		if err != nil {
			return nil, fmt.Errorf("opening sql store: %w", err)
		}
		store = sqlStore
		shutdownFns = append(shutdownFns, func(context.Context) error { return sqlStore.Close() })
	} else {
		store = persistence.NewMemStore()
	}

	bus := events.NewBus(cfg.ReplayBufferLen, metrics)
	matcher := intent.NewMatcher()
	guard := cooldown.NewGuard()

	var exec executor.BotExecutor
	if cfg.ModelsFilePath != "" {
		providers, err := config.LoadAgentsAPIFile(cfg.ModelsFilePath)
		if err != nil {
			return nil, fmt.Errorf("loading models provider file: %w", err)
		}
		exec = executor.NewLLMExecutor(providers)
	} else {
		exec = executor.NewProcessExecutor(cfg.ProcessEnv)
	}
	manager := lifecycle.NewManager(bus, store, exec)
	manager.SetMetrics(metrics)
	manager.SetGuard(guard)

	manager.Initialize(town.Bots)
	for name, b := range town.Bots {
		matcher.Register(name, b.Intent.Signals)
	}

	a := &App{
		Bus:         bus,
		Matcher:     matcher,
		Guard:       guard,
		Manager:     manager,
		Store:       store,
		Metrics:     metrics,
		bots:        town.Bots,
		shutdownFns: shutdownFns,
	}

	lookupIntent := func(bot string) (config.Intent, bool) {
		cfg, ok := a.Manager.Config(bot)
		if !ok {
			return config.Intent{}, false
		}
		return cfg.Intent, true
	}
	startForRouter := func(ctx context.Context, bot string, trigger events.Event, _ events.Source) error {
		return a.Manager.HandleEvent(ctx, bot, trigger)
	}
	a.Router = router.New(bus, matcher, guard, lookupIntent, startForRouter, metrics)

	lookupBot := func(bot string) (config.BotConfig, bool) {
		return a.Manager.Config(bot)
	}
	startForPulse := func(ctx context.Context, bot string, trigger events.Event, source events.Source) error {
		return a.Manager.StartBot(ctx, bot, trigger, source)
	}
	a.Pulse = pulse.New(startForPulse, lookupBot, metrics)
	a.Heartbeat = heartbeat.New(bus, manager, metrics)

	return a, nil
}

// Run starts every background loop (bus heartbeats, router, pulse,
// heartbeat monitor) and blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() { defer wg.Done(); a.Bus.Run(ctx) }()

	wg.Add(1)
	go func() { defer wg.Done(); a.Router.Run(ctx) }()

	botNames := make([]string, 0, len(a.bots))
	for name := range a.bots {
		botNames = append(botNames, name)
	}
	wg.Add(1)
	go func() { defer wg.Done(); a.Pulse.Run(ctx, botNames) }()

	wg.Add(1)
	go func() { defer wg.Done(); a.Heartbeat.Run(ctx) }()

	wg.Wait()
}

// Shutdown stops the lifecycle manager's in-flight runs and releases
// every resource (store connections, OTLP exporter) registered during
// New.
func (a *App) Shutdown(ctx context.Context) {
	a.Manager.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, fn := range a.shutdownFns {
		if err := fn(shutdownCtx); err != nil {
			log.Printf("[app] shutdown hook failed: %v", err)
		}
	}
}
