// Package heartbeat implements HeartbeatMonitor: a periodic pass that
// detects bots which have gone quiet longer than their configured
// heartbeat threshold and raises a heartbeat:bot_idle event — it never
// starts a bot directly, leaving that decision to the router/matcher.
//
// The ticker-driven periodic-check shape is adapted from the teacher's
// internal/nostr/lifecycle.go HeartbeatPublisher: a cancellable ticker
// goroutine that re-evaluates every bot's state on each tick. Here the
// payload is idle-detection rather than a republished lifecycle status.
package heartbeat

import (
	"context"
	"time"

	"github.com/jobflow-ai/activation-core/internal/events"
	"github.com/jobflow-ai/activation-core/internal/lifecycle"
)

const (
	startupGrace  = 10 * time.Minute
	checkInterval = 30 * time.Minute
)

// Metrics is the subset of telemetry.Metrics the monitor uses.
type Metrics interface {
	IncHeartbeatIdle(bot string)
}

type noopMetrics struct{}

func (noopMetrics) IncHeartbeatIdle(string) {}

// Monitor watches every bot's last-activity time against its configured
// HeartbeatHours threshold.
type Monitor struct {
	bus     *events.Bus
	manager *lifecycle.Manager
	metrics Metrics

	startedAt time.Time
}

// New constructs a Monitor.
func New(bus *events.Bus, manager *lifecycle.Manager, metrics Metrics) *Monitor {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Monitor{bus: bus, manager: manager, metrics: metrics, startedAt: time.Now().UTC()}
}

// Run ticks every checkInterval, skipping the first startupGrace window
// so a freshly-started core doesn't immediately flag every bot idle.
// Blocks until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(m.startedAt) < startupGrace {
				continue
			}
			m.checkAll()
		}
	}
}

func (m *Monitor) checkAll() {
	now := time.Now().UTC()
	for _, state := range m.manager.All() {
		cfg, ok := m.manager.Config(state.Name)
		if !ok || cfg.HeartbeatHours <= 0 {
			continue
		}
		reference := state.LastRunAt
		if reference.IsZero() {
			reference = m.startedAt
		}
		threshold := time.Duration(cfg.HeartbeatHours) * time.Hour
		idle := now.Sub(reference)
		if idle <= threshold {
			continue
		}

		m.metrics.IncHeartbeatIdle(state.Name)
		m.bus.Publish(events.Event{
			Type:   "heartbeat:bot_idle",
			Source: events.SourceSystem,
			Payload: map[string]any{
				"bot_name":        state.Name,
				"hours_idle":      idle.Hours(),
				"heartbeat_hours": cfg.HeartbeatHours,
			},
		})
	}
}
