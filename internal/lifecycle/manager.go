// Package lifecycle implements BotLifecycleManager: the state machine,
// run-lock concurrency control, and timeout enforcement for every
// registered bot.
//
// The per-bot mutex-guarded state plus context.CancelFunc-based stop
// path is adapted from the teacher's internal/agentloop.AgentLoop, which
// drives one long-lived worker per agent waiting on a work channel. Here
// every bot's "work" is a single request/response run rather than a
// standing loop, so the manager spawns one short-lived goroutine per
// run instead of reusing a persistent loop goroutine — but keeps the
// same run-lock test-and-set, state transitions under lock, and
// context.WithTimeout-bounded execution body.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/cooldown"
	"github.com/jobflow-ai/activation-core/internal/events"
	"github.com/jobflow-ai/activation-core/internal/executor"
	"github.com/jobflow-ai/activation-core/internal/persistence"
)

// errAlreadyRunningPrefix tags the error StartBot returns when a bot
// already has a run in flight, following this package's existing
// error-code-prefix convention (not_found, not_runnable, already_exists)
// so callers like the router can distinguish it from a genuine start
// failure without importing lifecycle's error types.
const errAlreadyRunningPrefix = "already_running"

// IsAlreadyRunning reports whether err is the rejection StartBot returns
// when the bot's single-run invariant blocked a new activation attempt.
func IsAlreadyRunning(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), errAlreadyRunningPrefix+":")
}

// Status is a bot's position in the lifecycle state machine.
type Status string

const (
	StatusDisabled Status = "disabled"
	StatusWaiting  Status = "waiting"
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusStopped  Status = "stopped"
	StatusErrored  Status = "errored"
)

// BotState is the externally visible snapshot of one bot.
type BotState struct {
	Name            string    `json:"name"`
	Status          Status    `json:"status"`
	Enabled         bool      `json:"enabled"`
	LastRunAt       time.Time `json:"last_run_at,omitempty"`
	CooldownUntil   time.Time `json:"cooldown_until,omitempty"`
	RunsToday       int       `json:"runs_today"`
	TotalRuns       int       `json:"total_runs"`
	LastActivatedBy string    `json:"last_activated_by,omitempty"`
}

type bot struct {
	mu     sync.Mutex
	cfg    config.BotConfig
	state  BotState
	paused bool
	// running is the run-lock: non-nil while a run is in flight.
	running *activeRun
}

type activeRun struct {
	runID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Metrics is the subset of telemetry.Metrics the manager records
// completed runs through.
type Metrics interface {
	IncBotRuns(status string)
}

type noopMetrics struct{}

func (noopMetrics) IncBotRuns(string) {}

// Manager owns every bot's config and state and is the only component
// allowed to transition a bot between lifecycle states.
type Manager struct {
	bus     *events.Bus
	store   persistence.Store
	exec    executor.BotExecutor
	metrics Metrics
	guard   *cooldown.Guard

	mu   sync.RWMutex
	bots map[string]*bot
}

// NewManager constructs a Manager. bus receives bot_state_change and
// bots_state events; store persists run/log records (failures are
// retried and swallowed, never surfaced to callers); exec is the opaque
// bot-execution body.
func NewManager(bus *events.Bus, store persistence.Store, exec executor.BotExecutor) *Manager {
	return &Manager{
		bus:     bus,
		store:   store,
		exec:    exec,
		metrics: noopMetrics{},
		bots:    make(map[string]*bot),
	}
}

// SetMetrics wires a metrics sink for completed run counts. Optional;
// defaults to a no-op so tests and callers that don't care about
// telemetry never need to supply one.
func (m *Manager) SetMetrics(metrics Metrics) {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	m.metrics = metrics
}

// SetGuard wires the cooldown guard the manager reads cooldown_until and
// runs_today from when publishing state after a run completes. Without
// one, completion handling falls back to a local runs-today counter that
// never resets at UTC midnight — callers that care about the daily cap
// should always set this to the same guard the router uses.
func (m *Manager) SetGuard(guard *cooldown.Guard) {
	m.guard = guard
}

// Initialize registers the given bot configs (in map iteration order) and
// publishes the full bots_state snapshot once all are loaded.
func (m *Manager) Initialize(cfgs map[string]*config.BotConfig) {
	m.mu.Lock()
	for name, cfg := range cfgs {
		status := StatusWaiting
		if !cfg.Enabled {
			status = StatusDisabled
		}
		m.bots[name] = &bot{
			cfg: *cfg,
			state: BotState{
				Name:    name,
				Status:  status,
				Enabled: cfg.Enabled,
			},
		}
	}
	m.mu.Unlock()

	persistence.WithRetry(context.Background(), "upsert_bot_records", func(ctx context.Context) error {
		for name, cfg := range cfgs {
			if err := m.store.UpsertBotRecord(ctx, name, cfg.DisplayName, *cfg); err != nil {
				return err
			}
		}
		return nil
	})

	m.PublishFullState()
}

// CreateCustomBot registers a dynamically-defined bot (not from the
// static town file). Validates uniqueness, a non-empty display name, and
// at least one intent signal before registering, per the original
// bot_manager.py behavior.
func (m *Manager) CreateCustomBot(cfg config.BotConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("invalid_config: bot name is required")
	}
	if cfg.DisplayName == "" {
		return fmt.Errorf("invalid_config: display_name is required")
	}
	if len(cfg.Intent.Signals) == 0 {
		return fmt.Errorf("invalid_config: at least one intent signal is required")
	}

	m.mu.Lock()
	if _, exists := m.bots[cfg.Name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("already_exists: bot %q is already registered", cfg.Name)
	}
	cfg.ApplyDefaults()
	status := StatusWaiting
	if !cfg.Enabled {
		status = StatusDisabled
	}
	m.bots[cfg.Name] = &bot{
		cfg:   cfg,
		state: BotState{Name: cfg.Name, Status: status, Enabled: cfg.Enabled},
	}
	m.mu.Unlock()

	m.persistSwallow(func(ctx context.Context) error {
		return m.store.UpsertBotRecord(ctx, cfg.Name, cfg.DisplayName, cfg)
	})
	m.PublishFullState()
	return nil
}

// DeleteCustomBot removes a bot from the manager. Stops it first if running.
func (m *Manager) DeleteCustomBot(name string) error {
	if err := m.StopBot(name); err != nil {
		log.Printf("[lifecycle] stop before delete for %q: %v", name, err)
	}

	m.mu.Lock()
	if _, ok := m.bots[name]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("not_found: bot %q is not registered", name)
	}
	delete(m.bots, name)
	m.mu.Unlock()

	m.PublishFullState()
	return nil
}

// Get returns a snapshot of one bot's state, or false if unknown.
func (m *Manager) Get(name string) (BotState, bool) {
	m.mu.RLock()
	b, ok := m.bots[name]
	m.mu.RUnlock()
	if !ok {
		return BotState{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, true
}

// Config returns a bot's config, or false if unknown.
func (m *Manager) Config(name string) (config.BotConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bots[name]
	if !ok {
		return config.BotConfig{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg, true
}

// All returns a snapshot of every registered bot's state.
func (m *Manager) All() []BotState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BotState, 0, len(m.bots))
	for _, b := range m.bots {
		b.mu.Lock()
		out = append(out, b.state)
		b.mu.Unlock()
	}
	return out
}

// SetEnabled flips a bot's enabled flag and, correspondingly, its
// waiting/disabled status (only when not currently running).
func (m *Manager) SetEnabled(name string, enabled bool) error {
	b, err := m.lookup(name)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.cfg.Enabled = enabled
	b.state.Enabled = enabled
	if b.state.Status != StatusRunning {
		if enabled {
			b.state.Status = StatusWaiting
		} else {
			b.state.Status = StatusDisabled
		}
	}
	b.mu.Unlock()

	m.publishStateChange(name)
	return nil
}

// PauseBot suspends activation for a bot without losing its other state.
func (m *Manager) PauseBot(name string) error {
	b, err := m.lookup(name)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.paused = true
	if b.state.Status != StatusRunning {
		b.state.Status = StatusPaused
	}
	b.mu.Unlock()
	m.publishStateChange(name)
	return nil
}

// ResumeBot un-pauses a bot, returning it to waiting.
func (m *Manager) ResumeBot(name string) error {
	b, err := m.lookup(name)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.paused = false
	if b.state.Status == StatusPaused {
		b.state.Status = StatusWaiting
	}
	b.mu.Unlock()
	m.publishStateChange(name)
	return nil
}

// IsRunnable reports whether a bot is eligible to be started right now
// (enabled, not paused, not already running).
func (m *Manager) IsRunnable(name string) bool {
	b, err := m.lookup(name)
	if err != nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Enabled && !b.paused && b.running == nil
}

// StartBot attempts to start a run for bot, triggered by triggerEvent
// (may be the empty Event for manually-triggered runs) from source. It
// enforces the single-live-run-per-bot invariant via a run-lock
// test-and-set: if a run is already in flight, it returns an
// already_running error (see IsAlreadyRunning) rather than spawning a
// second run — callers must not treat that as a successful activation.
func (m *Manager) StartBot(ctx context.Context, name string, trigger events.Event, source events.Source) error {
	b, err := m.lookup(name)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if !b.cfg.Enabled || b.paused {
		b.mu.Unlock()
		return fmt.Errorf("not_runnable: bot %q is disabled or paused", name)
	}
	if b.running != nil {
		b.mu.Unlock()
		return fmt.Errorf("%s: bot %q already has a run in flight", errAlreadyRunningPrefix, name)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), time.Duration(b.cfg.TimeoutMinutes)*time.Minute)
	run := &activeRun{runID: newRunID(), cancel: cancel, done: make(chan struct{})}
	b.running = run
	b.state.Status = StatusRunning
	b.state.LastActivatedBy = string(source)
	b.mu.Unlock()

	m.publishStateChange(name)
	m.bus.Publish(events.Event{Type: events.TypeBotRunStarted, Source: source, Payload: map[string]any{
		"bot_name": name, "run_id": run.runID,
	}})

	go m.runBody(runCtx, b, name, run, trigger)
	return nil
}

// runBody drives one run to completion, including run-level retries of
// retriable failures per executor.DefaultRetryPolicy, then records the
// outcome: persistence, the bot_run_complete/bot_run_error activation
// events, and the bot's state.
func (m *Manager) runBody(ctx context.Context, b *bot, name string, run *activeRun, trigger events.Event) {
	defer close(run.done)
	defer run.cancel()

	startedAt := time.Now().UTC()
	m.persistSwallow(func(pctx context.Context) error {
		return m.store.CreateBotRun(pctx, run.runID, name, trigger.Type, startedAt)
	})

	result, execErr := m.executeWithRetry(ctx, b, name, run, trigger)
	kind := executor.ClassifyError(execErr)

	b.mu.Lock()
	b.running = nil
	b.state.LastRunAt = time.Now().UTC()
	b.state.TotalRuns++
	if m.guard != nil {
		b.state.RunsToday = m.guard.DailyCount(name, time.Now().UTC())
		b.state.CooldownUntil = m.guard.CooldownUntil(name)
	} else {
		b.state.RunsToday++
	}
	if execErr != nil {
		b.state.Status = StatusErrored
	} else if b.paused {
		b.state.Status = StatusPaused
	} else if !b.cfg.Enabled {
		b.state.Status = StatusDisabled
	} else {
		b.state.Status = StatusWaiting
	}
	b.mu.Unlock()

	status := persistence.RunStatusOK
	output := ""
	inTok, outTok, cost := 0, 0, 0.0
	if result != nil {
		output = result.Output
		inTok, outTok, cost = result.InputTokens, result.OutputTokens, result.Cost
	}

	if execErr != nil {
		reason := execErr.Error()
		switch kind {
		case executor.ErrorTimeout:
			status = persistence.RunStatusError
			reason = fmt.Sprintf("Timed out after %d minutes", b.cfg.TimeoutMinutes)
		case executor.ErrorCancelled:
			status = persistence.RunStatusCancelled
			reason = "Run was cancelled"
		default:
			status = persistence.RunStatusError
		}
		output = execErr.Error()
		log.Printf("[lifecycle] bot %q run %s failed: %v", name, run.runID, execErr)

		m.bus.Publish(events.Event{Type: events.TypeBotRunError, Source: events.SourceSystem, Payload: map[string]any{
			"bot_name":   name,
			"run_id":     run.runID,
			"error_type": string(kind),
			"reason":     reason,
		}})
	} else {
		m.bus.Publish(events.Event{Type: events.TypeBotRunComplete, Source: events.SourceSystem, Payload: map[string]any{
			"bot_name": name,
			"run_id":   run.runID,
		}})
	}
	m.metrics.IncBotRuns(string(status))

	m.persistSwallow(func(pctx context.Context) error {
		return m.store.CompleteBotRun(pctx, run.runID, status, output, inTok, outTok, cost)
	})

	m.publishStateChange(name)
}

// executeWithRetry runs the bot's opaque execution body, retrying
// retriable failures (per executor.ClassifyError/ErrorKind.Retryable) up
// to executor.DefaultRetryPolicy's attempt cap with exponential backoff,
// publishing a bot_run_retry event before each wait.
func (m *Manager) executeWithRetry(ctx context.Context, b *bot, name string, run *activeRun, trigger events.Event) (*executor.Result, error) {
	policy := executor.DefaultRetryPolicy
	var result *executor.Result
	var execErr error

	for attempt := 0; ; attempt++ {
		result, execErr = m.exec.Execute(ctx, b.cfg, trigger)
		if execErr == nil {
			return result, nil
		}

		kind := executor.ClassifyError(execErr)
		if !kind.Retryable() || attempt >= policy.MaxAttempts {
			return result, execErr
		}

		wait := policy.DelayForAttempt(attempt)
		m.bus.Publish(events.Event{Type: events.TypeBotRunRetry, Source: events.SourceSystem, Payload: map[string]any{
			"bot_name":     name,
			"run_id":       run.runID,
			"attempt":      attempt + 1,
			"max_retries":  policy.MaxAttempts,
			"wait_seconds": wait.Seconds(),
			"error":        execErr.Error(),
		}})

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}

// StopBot cancels a bot's in-flight run, if any, and waits (briefly) for
// it to unwind.
func (m *Manager) StopBot(name string) error {
	b, err := m.lookup(name)
	if err != nil {
		return err
	}

	b.mu.Lock()
	run := b.running
	if run == nil {
		b.state.Status = StatusStopped
		b.mu.Unlock()
		m.publishStateChange(name)
		return nil
	}
	b.mu.Unlock()

	run.cancel()
	select {
	case <-run.done:
	case <-time.After(30 * time.Second):
		log.Printf("[lifecycle] bot %q did not stop within 30s", name)
	}
	return nil
}

// HandleEvent is the entry point the router calls once the matcher and
// cooldown guard have both approved activation for this bot.
func (m *Manager) HandleEvent(ctx context.Context, name string, e events.Event) error {
	return m.StartBot(ctx, name, e, events.SourceBot)
}

// Shutdown stops every running bot in parallel, waiting up to 30 seconds
// for each one to finish.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	names := make([]string, 0, len(m.bots))
	for name := range m.bots {
		names = append(names, name)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			_ = m.StopBot(n)
		}(name)
	}
	wg.Wait()
}

// PublishFullState emits a bots_state snapshot event, mirroring the
// original bot_manager.py behavior of publishing the whole bot table
// after initialize/create/delete rather than only per-bot deltas.
func (m *Manager) PublishFullState() {
	all := m.All()
	m.bus.Publish(events.Event{Type: events.TypeBotsState, Source: events.SourceSystem, Payload: map[string]any{
		"bots": all,
	}})
}

func (m *Manager) publishStateChange(name string) {
	state, ok := m.Get(name)
	if !ok {
		return
	}
	m.bus.Publish(events.Event{Type: events.TypeBotStateChange, Source: events.SourceSystem, Payload: map[string]any{
		"bot_name": name, "state": state,
	}})
}

func (m *Manager) lookup(name string) (*bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bots[name]
	if !ok {
		return nil, fmt.Errorf("not_found: bot %q is not registered", name)
	}
	return b, nil
}

func (m *Manager) persistSwallow(fn func(context.Context) error) {
	persistence.WithRetry(context.Background(), "bot_run_persist", fn)
}

func newRunID() string {
	return "run-" + uuid.NewString()
}
