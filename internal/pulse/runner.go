// Package pulse implements PulseRunner: an adaptive-cadence background
// tick that gives every bot a chance to run even without a matching
// event, at 5/15/30-minute intervals depending on how recently the bot
// (or the user it serves) was active, gated to each bot's configured
// active hours.
//
// The per-bot ticking/scheduling shape is grounded on the pack's
// heartbeat Scheduler (other_examples/944675c8_haasonsaas-nexus__
// internal-heartbeat-runner.go.go): a map of named runners, each with
// its own goroutine, stoppable individually or all at once, isolated so
// one bot's failure never blocks another's tick.
package pulse

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/events"
)

const (
	tierActive  = 5 * time.Minute
	tierRecent  = 15 * time.Minute
	tierDefault = 30 * time.Minute

	activeWithin = 15 * time.Minute
	recentWithin = time.Hour
)

// StartFunc triggers a pulse-driven bot run.
type StartFunc func(ctx context.Context, bot string, trigger events.Event, source events.Source) error

// Metrics is the subset of telemetry.Metrics the pulse runner uses.
type Metrics interface {
	IncPulseTicks()
}

type noopMetrics struct{}

func (noopMetrics) IncPulseTicks() {}

// ConfigLookup resolves a bot's current config at tick time.
type ConfigLookup func(bot string) (config.BotConfig, bool)

// Runner drives the adaptive pulse tick for every pulse-enabled bot.
type Runner struct {
	start   StartFunc
	lookup  ConfigLookup
	metrics Metrics

	mu       sync.Mutex
	lastSeen map[string]time.Time // last-activity timestamp per bot, via NotifyActivity

	stopCh chan struct{}
	done   chan struct{}
}

// New constructs a Runner.
func New(start StartFunc, lookup ConfigLookup, metrics Metrics) *Runner {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Runner{
		start:    start,
		lookup:   lookup,
		metrics:  metrics,
		lastSeen: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// NotifyActivity records that bot (or its owning user) was just active,
// shortening its pulse cadence to the most frequent tier.
func (r *Runner) NotifyActivity(bot string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen[bot] = time.Now().UTC()
}

// interval picks the adaptive cadence for bot based on recency of
// recorded activity.
func (r *Runner) interval(bot string, now time.Time) time.Duration {
	r.mu.Lock()
	last, ok := r.lastSeen[bot]
	r.mu.Unlock()

	if !ok {
		return tierDefault
	}
	age := now.Sub(last)
	switch {
	case age <= activeWithin:
		return tierActive
	case age <= recentWithin:
		return tierRecent
	default:
		return tierDefault
	}
}

// activeNow reports whether now (UTC) falls inside the bot's configured
// active-hours window, handling midnight wraparound (e.g. start=22,
// end=6 covers 22:00-23:59 and 00:00-05:59).
func activeNow(cfg config.PulseConfig, now time.Time) bool {
	if cfg.ActiveStartHour == cfg.ActiveEndHour {
		return true // 0-24 or equal bounds means "always on"
	}
	h := now.UTC().Hour()
	if cfg.ActiveStartHour < cfg.ActiveEndHour {
		return h >= cfg.ActiveStartHour && h < cfg.ActiveEndHour
	}
	// wraps past midnight
	return h >= cfg.ActiveStartHour || h < cfg.ActiveEndHour
}

// Run starts the per-bot tick loop for every bot in bots (by name),
// resolved fresh via lookup on each tick so config changes made through
// the manager (such as enabled) take effect without a restart. Blocks
// until ctx is canceled.
func (r *Runner) Run(ctx context.Context, botNames []string) {
	defer close(r.done)

	// Each bot gets its own ticking goroutine so a slow/blocked run for
	// one bot never delays another's tick, mirroring the Scheduler's
	// one-runner-per-session isolation.
	var wg sync.WaitGroup
	for _, name := range botNames {
		wg.Add(1)
		go func(bot string) {
			defer wg.Done()
			r.runOne(ctx, bot)
		}(name)
	}

	<-ctx.Done()
	close(r.stopCh)
	wg.Wait()
}

func (r *Runner) runOne(ctx context.Context, bot string) {
	for {
		cfg, ok := r.lookup(bot)
		if !ok || !cfg.Pulse.Enabled || !cfg.Enabled {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-time.After(tierDefault):
				continue
			}
		}

		wait := r.interval(bot, time.Now().UTC())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		cfg, ok = r.lookup(bot)
		if !ok || !cfg.Enabled || !cfg.Pulse.Enabled {
			continue
		}
		if !activeNow(cfg.Pulse, time.Now().UTC()) {
			continue
		}

		r.metrics.IncPulseTicks()
		trigger := events.Event{Type: "pulse:tick", Source: events.SourceSystem, Payload: map[string]any{"bot_name": bot}}
		if err := r.start(ctx, bot, trigger, events.SourceSystem); err != nil {
			log.Printf("[pulse] tick for %q: %v", bot, err)
		}
	}
}
