// Package router implements ActivationRouter: the bus subscriber that
// turns matched, cooldown-approved intents into bot activations.
package router

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/cooldown"
	"github.com/jobflow-ai/activation-core/internal/events"
	"github.com/jobflow-ai/activation-core/internal/intent"
)

// StartFunc is the lifecycle manager's StartBot entry point, held as a
// function value rather than a *lifecycle.Manager import so this
// package never needs to import lifecycle (which itself imports
// executor/persistence) — per the design note against circular wiring
// between the router and the manager.
type StartFunc func(ctx context.Context, bot string, trigger events.Event, source events.Source) error

// ConfigLookup resolves a bot's current Intent config, used to apply the
// cooldown guard at routing time rather than at registration time, so the
// guard sees the config the lifecycle manager holds at that moment.
type ConfigLookup func(bot string) (config.Intent, bool)

// Metrics is the subset of telemetry.Metrics the router records through.
type Metrics interface {
	IncActivations(bot string)
	IncActivationsRejected(reason string)
}

type noopMetrics struct{}

func (noopMetrics) IncActivations(string)           {}
func (noopMetrics) IncActivationsRejected(string)   {}

// Router subscribes to the bus and, for every non-meta event, consults
// the intent matcher then the cooldown guard then the lifecycle manager,
// strictly in that order, processing matches in priority order.
type Router struct {
	bus      *events.Bus
	matcher  *intent.Matcher
	guard    *cooldown.Guard
	lookup   ConfigLookup
	start    StartFunc
	metrics  Metrics

	sub *events.Subscription
}

// New constructs a Router. It does not start consuming events until Run
// is called.
func New(bus *events.Bus, matcher *intent.Matcher, guard *cooldown.Guard, lookup ConfigLookup, start StartFunc, metrics Metrics) *Router {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Router{bus: bus, matcher: matcher, guard: guard, lookup: lookup, start: start, metrics: metrics}
}

// Run subscribes to the bus (excluding heartbeats) and processes events
// until ctx is canceled.
func (r *Router) Run(ctx context.Context) {
	r.sub = r.bus.Subscribe(0, false)
	defer r.sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-r.sub.Events:
			if !ok {
				return
			}
			r.handle(ctx, e)
		}
	}
}

// isAlreadyRunning mirrors lifecycle's error-code-prefix convention
// (not_found, not_runnable, already_running) by string rather than by
// importing internal/lifecycle, which would reintroduce the router-to-
// manager dependency the StartFunc indirection exists to avoid.
func isAlreadyRunning(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "already_running:")
}

func (r *Router) handle(ctx context.Context, e events.Event) {
	if events.MetaEventTypes[e.Type] {
		return
	}

	matches := r.matcher.Match(e)
	now := time.Now().UTC()

	for _, match := range matches {
		intentCfg, ok := r.lookup(match.Bot)
		if !ok {
			continue
		}

		if !r.guard.CanActivate(match.Bot, intentCfg, match.Priority, now) {
			r.metrics.IncActivationsRejected("cooldown_or_cap")
			continue
		}

		if err := r.start(ctx, match.Bot, e, events.SourceBot); err != nil {
			// already_running means the bot never actually started a new
			// run, so it must not burn a cooldown/daily-cap slot — unlike
			// a genuine start failure, this isn't logged as an error.
			if isAlreadyRunning(err) {
				r.metrics.IncActivationsRejected("already_running")
				continue
			}
			log.Printf("[router] start %q for event %s failed: %v", match.Bot, e.Type, err)
			r.metrics.IncActivationsRejected("start_failed")
			continue
		}

		r.guard.RecordActivation(match.Bot, intentCfg, match.Priority, now)
		r.metrics.IncActivations(match.Bot)
	}
}
