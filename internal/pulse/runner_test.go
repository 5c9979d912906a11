package pulse

import (
	"context"
	"testing"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
)

func TestIntervalTiersByActivityRecency(t *testing.T) {
	r := New(nil, nil, nil)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	if got := r.interval("bot", now); got != tierDefault {
		t.Fatalf("expected default tier with no recorded activity, got %v", got)
	}

	r.lastSeen["bot"] = now.Add(-10 * time.Minute)
	if got := r.interval("bot", now); got != tierActive {
		t.Fatalf("expected active tier within 15m of activity, got %v", got)
	}

	r.lastSeen["bot"] = now.Add(-45 * time.Minute)
	if got := r.interval("bot", now); got != tierRecent {
		t.Fatalf("expected recent tier within 60m of activity, got %v", got)
	}

	r.lastSeen["bot"] = now.Add(-2 * time.Hour)
	if got := r.interval("bot", now); got != tierDefault {
		t.Fatalf("expected default tier beyond 60m of activity, got %v", got)
	}
}

func TestNotifyActivityRecordsTimestamp(t *testing.T) {
	r := New(nil, nil, nil)
	r.NotifyActivity("bot")
	r.mu.Lock()
	_, ok := r.lastSeen["bot"]
	r.mu.Unlock()
	if !ok {
		t.Fatal("expected NotifyActivity to record an entry")
	}
}

func TestActiveNowHandlesMidnightWraparound(t *testing.T) {
	cfg := config.PulseConfig{ActiveStartHour: 22, ActiveEndHour: 6}

	inWindow := time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC)
	if !activeNow(cfg, inWindow) {
		t.Fatal("expected 23:00 to be within a 22-6 wraparound window")
	}
	afterMidnight := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	if !activeNow(cfg, afterMidnight) {
		t.Fatal("expected 03:00 to be within a 22-6 wraparound window")
	}
	outside := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	if activeNow(cfg, outside) {
		t.Fatal("expected noon to be outside a 22-6 wraparound window")
	}
}

func TestActiveNowAlwaysOnWhenBoundsEqual(t *testing.T) {
	cfg := config.PulseConfig{ActiveStartHour: 0, ActiveEndHour: 0}
	if !activeNow(cfg, time.Now()) {
		t.Fatal("expected equal start/end hours to mean always-on")
	}
}

func TestRunExitsPromptlyOnContextCancelWithNoBots(t *testing.T) {
	r := New(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
