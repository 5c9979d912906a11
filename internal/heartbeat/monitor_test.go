package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/events"
	"github.com/jobflow-ai/activation-core/internal/executor"
	"github.com/jobflow-ai/activation-core/internal/lifecycle"
	"github.com/jobflow-ai/activation-core/internal/persistence"
)

type instantExecutor struct{}

func (instantExecutor) Execute(ctx context.Context, cfg config.BotConfig, trigger events.Event) (*executor.Result, error) {
	return &executor.Result{Output: "ok"}, nil
}

func newTestManagerWithCompletedRun(t *testing.T, bus *events.Bus, heartbeatHours int) *lifecycle.Manager {
	t.Helper()
	store := persistence.NewMemStore()
	m := lifecycle.NewManager(bus, store, instantExecutor{})
	cfg := &config.BotConfig{Name: "job_scout", DisplayName: "Job Scout", Enabled: true, TimeoutMinutes: 1, HeartbeatHours: heartbeatHours}
	m.Initialize(map[string]*config.BotConfig{"job_scout": cfg})

	if err := m.StartBot(context.Background(), "job_scout", events.Event{Type: "job:found"}, events.SourceBot); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(time.Second)
	for {
		state, _ := m.Get("job_scout")
		if !state.LastRunAt.IsZero() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for run to complete")
		case <-time.After(5 * time.Millisecond):
		}
	}
	return m
}

func TestCheckAllDoesNotFlagBotRightAfterRun(t *testing.T) {
	bus := events.NewBus(200, nil)
	m := newTestManagerWithCompletedRun(t, bus, 1)

	// HeartbeatHours=1 and the run has just completed, so the bot is
	// inside its idle threshold and checkAll must not flag it.
	mon := New(bus, m, nil)
	mon.startedAt = time.Now().UTC().Add(-startupGrace - time.Minute)

	sub := bus.Subscribe(0, false)
	defer sub.Unsubscribe()

	mon.checkAll()

	select {
	case e := <-sub.Events:
		t.Fatalf("did not expect an idle event immediately after a run completed, got %v", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCheckAllFlagsNeverRunBotAgainstMonitorStartTime(t *testing.T) {
	bus := events.NewBus(200, nil)
	store := persistence.NewMemStore()
	m := lifecycle.NewManager(bus, store, instantExecutor{})
	cfg := &config.BotConfig{Name: "heartbeat_checker", DisplayName: "Heartbeat Checker", Enabled: true, TimeoutMinutes: 1, HeartbeatHours: 6}
	m.Initialize(map[string]*config.BotConfig{"heartbeat_checker": cfg})

	mon := New(bus, m, nil)
	mon.startedAt = time.Now().UTC().Add(-7 * time.Hour)

	sub := bus.Subscribe(0, false)
	defer sub.Unsubscribe()

	mon.checkAll()

	select {
	case e := <-sub.Events:
		if e.Type != "heartbeat:bot_idle" {
			t.Fatalf("expected heartbeat:bot_idle, got %v", e.Type)
		}
		if e.Payload["bot_name"] != "heartbeat_checker" {
			t.Fatalf("unexpected bot_name payload: %v", e.Payload["bot_name"])
		}
		if _, ok := e.Payload["hours_idle"]; !ok {
			t.Fatal("expected hours_idle in payload")
		}
		if got := e.Payload["heartbeat_hours"]; got != 6 {
			t.Fatalf("expected heartbeat_hours=6, got %v", got)
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected a never-run bot idle past the monitor's start time to be flagged")
	}
}

func TestCheckAllSkipsBotsWithoutHeartbeatConfigured(t *testing.T) {
	bus := events.NewBus(200, nil)
	m := newTestManagerWithCompletedRun(t, bus, 0)
	mon := New(bus, m, nil)

	sub := bus.Subscribe(0, false)
	defer sub.Unsubscribe()

	mon.checkAll()

	select {
	case e := <-sub.Events:
		t.Fatalf("expected no idle event for a bot with HeartbeatHours=0, got %v", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunSkipsChecksDuringStartupGrace(t *testing.T) {
	bus := events.NewBus(200, nil)
	m := newTestManagerWithCompletedRun(t, bus, 1)
	mon := New(bus, m, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	mon.Run(ctx)
}
