// Package cooldown implements per-bot rate limiting: a minimum gap
// between activations (halved for high-priority signals) and a daily
// activation cap that resets lazily at UTC midnight.
package cooldown

import (
	"sync"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
)

type botState struct {
	lastActivation time.Time
	cooldownUntil  time.Time
	dailyCount     int
	dayAnchor      time.Time // UTC midnight of the day dailyCount applies to
}

// Guard tracks cooldown-until and daily-count state per bot. All methods
// are safe for concurrent use; callers that need check-then-act atomicity
// across CanActivate and RecordActivation must serialize through their
// own lock or goroutine (the router handles events one at a time on its
// single consume goroutine) since this guard does not itself fuse the two
// calls.
type Guard struct {
	mu    sync.Mutex
	state map[string]*botState
}

// NewGuard builds an empty cooldown guard.
func NewGuard() *Guard {
	return &Guard{state: make(map[string]*botState)}
}

func (g *Guard) stateFor(bot string) *botState {
	s, ok := g.state[bot]
	if !ok {
		s = &botState{}
		g.state[bot] = s
	}
	return s
}

func utcMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// resetIfNewDay lazily zeroes the daily counter when the wall clock has
// crossed a UTC midnight boundary since the last observation.
func (s *botState) resetIfNewDay(now time.Time) {
	today := utcMidnight(now)
	if s.dayAnchor.IsZero() || today.After(s.dayAnchor) {
		s.dayAnchor = today
		s.dailyCount = 0
	}
}

// effectiveCooldown halves the configured cooldown for high-priority
// activations, per the invariant that urgent signals should be able to
// re-trigger a bot sooner.
func effectiveCooldown(cfg config.Intent, priority config.Priority) time.Duration {
	minutes := cfg.CooldownMinutes
	if priority == config.PriorityHigh {
		minutes = minutes / 2
	}
	if minutes < 0 {
		minutes = 0
	}
	return time.Duration(minutes) * time.Minute
}

// CanActivate reports whether bot may activate right now for the given
// intent config and priority, evaluated against "now".
func (g *Guard) CanActivate(bot string, cfg config.Intent, priority config.Priority, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.stateFor(bot)
	s.resetIfNewDay(now)

	if !s.lastActivation.IsZero() && now.Sub(s.lastActivation) < effectiveCooldown(cfg, priority) {
		return false
	}
	if cfg.MaxRunsPerDay > 0 && s.dailyCount >= cfg.MaxRunsPerDay {
		return false
	}
	return true
}

// RecordActivation registers that bot activated now under the given
// intent config and priority: bumps the daily count and sets the next
// cooldown-until.
func (g *Guard) RecordActivation(bot string, cfg config.Intent, priority config.Priority, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.stateFor(bot)
	s.resetIfNewDay(now)
	s.dailyCount++
	s.lastActivation = now
	s.cooldownUntil = now.Add(effectiveCooldown(cfg, priority))
}

// CooldownUntil returns the time before which bot may not activate
// again, or the zero time if no cooldown is in effect.
func (g *Guard) CooldownUntil(bot string) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateFor(bot).cooldownUntil
}

// DailyCount returns the number of activations recorded for bot so far
// today (UTC), after applying the lazy midnight reset.
func (g *Guard) DailyCount(bot string, now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.stateFor(bot)
	s.resetIfNewDay(now)
	return s.dailyCount
}
