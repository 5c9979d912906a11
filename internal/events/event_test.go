package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishAssignsMonotonicIDs(t *testing.T) {
	b := NewBus(200, nil)
	e1 := b.Publish(Event{Type: "job:found"})
	e2 := b.Publish(Event{Type: "job:found"})

	if e1.EventID == 0 || e2.EventID <= e1.EventID {
		t.Fatalf("expected strictly increasing event ids, got %d then %d", e1.EventID, e2.EventID)
	}
}

func TestSubscribeReplaysBacklog(t *testing.T) {
	b := NewBus(200, nil)
	first := b.Publish(Event{Type: "job:found"})
	b.Publish(Event{Type: "job:found"})

	sub := b.Subscribe(first.EventID, false)
	defer sub.Unsubscribe()

	select {
	case e := <-sub.Events:
		if e.EventID != first.EventID+1 {
			t.Fatalf("expected replay to start after last_event_id, got %d", e.EventID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replayed event")
	}
}

func TestSubscribeExcludesHeartbeatsWhenNotRequested(t *testing.T) {
	b := NewBus(200, nil)
	sub := b.Subscribe(0, false)
	defer sub.Unsubscribe()

	b.Publish(Event{Type: TypeHeartbeat, Source: SourceSystem})
	b.Publish(Event{Type: "job:found"})

	select {
	case e := <-sub.Events:
		if e.Type != "job:found" {
			t.Fatalf("expected heartbeat to be filtered out, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for non-heartbeat event")
	}
}

func TestSlowSubscriberDropsOldestRatherThanBlocking(t *testing.T) {
	b := NewBus(200, nil)
	sub := b.Subscribe(0, false)
	defer sub.Unsubscribe()

	for i := 0; i < defaultSubscriberQueueLen+10; i++ {
		b.Publish(Event{Type: "job:found"})
	}

	select {
	case <-sub.Events:
	default:
		t.Fatal("expected at least one buffered event to be deliverable without blocking")
	}
}

func TestReplayBufferCapped(t *testing.T) {
	b := NewBus(200, nil)
	for i := 0; i < 250; i++ {
		b.Publish(Event{Type: "job:found"})
	}
	if len(b.ReplayEvents(0)) > 200 {
		t.Fatalf("expected replay buffer capped at 200, got %d", len(b.ReplayEvents(0)))
	}
}

func TestRunStopsCleanly(t *testing.T) {
	b := &Bus{replayCap: 200, subs: make(map[uint64]*subscriber), metrics: noopMetrics{}, stopCh: make(chan struct{}), stopped: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go b.Run(ctx)
	defer b.Stop()

	// Give Run a moment to start; this test only checks it doesn't
	// panic and that Stop terminates it cleanly.
	time.Sleep(10 * time.Millisecond)
}
