package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
)

func TestMemStoreRecordsRunLifecycle(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	started := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	if err := s.CreateBotRun(ctx, "run-1", "job_scout", "job:found", started); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteBotRun(ctx, "run-1", RunStatusOK, "done", 10, 20, 0.05); err != nil {
		t.Fatal(err)
	}

	runs := s.Runs()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != RunStatusOK || runs[0].Output != "done" || runs[0].InTokens != 10 {
		t.Fatalf("unexpected run record: %+v", runs[0])
	}
}

func TestMemStoreUpsertAndState(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.UpsertBotRecord(ctx, "job_scout", "Job Scout", config.BotConfig{Name: "job_scout"}); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if err := s.UpdateBotState(ctx, "job_scout", "running", &now); err != nil {
		t.Fatal(err)
	}
}

func TestMemStoreCreateBotLog(t *testing.T) {
	s := NewMemStore()
	if err := s.CreateBotLog(context.Background(), "run-1", "info", "job:found", "activated", map[string]any{"k": "v"}); err != nil {
		t.Fatal(err)
	}
	logs := s.Logs()
	if len(logs) != 1 || logs[0].Message != "activated" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

type flakyStore struct {
	failuresRemaining int
}

func (f *flakyStore) CreateBotRun(ctx context.Context, runID, bot, trigger string, startedAt time.Time) error {
	return nil
}
func (f *flakyStore) CompleteBotRun(ctx context.Context, runID string, status RunStatus, output string, inTokens, outTokens int, cost float64) error {
	return nil
}
func (f *flakyStore) CreateBotLog(ctx context.Context, runID, level, eventType, message string, data map[string]any) error {
	return nil
}
func (f *flakyStore) UpsertBotRecord(ctx context.Context, name, displayName string, cfg config.BotConfig) error {
	return nil
}
func (f *flakyStore) UpdateBotState(ctx context.Context, name string, status string, lastRunAt *time.Time) error {
	return nil
}

func TestWithRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	WithRetry(context.Background(), "test_op", func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errFlaky
		}
		return nil
	})
	if attempts != 2 {
		t.Fatalf("expected success on 2nd attempt, got %d attempts", attempts)
	}
}

func TestWithRetrySwallowsPersistentFailure(t *testing.T) {
	attempts := 0
	done := make(chan struct{})
	go func() {
		WithRetry(context.Background(), "test_op", func(ctx context.Context) error {
			attempts++
			return errFlaky
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("WithRetry did not return after exhausting retries")
	}
	if attempts != DefaultRetryPolicy.MaxAttempts+1 {
		t.Fatalf("expected %d attempts, got %d", DefaultRetryPolicy.MaxAttempts+1, attempts)
	}
}

func TestWithRetryStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	done := make(chan struct{})
	go func() {
		WithRetry(ctx, "test_op", func(ctx context.Context) error {
			attempts++
			return errFlaky
		})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WithRetry did not stop after context cancellation")
	}
}

var errFlaky = &staticError{"flaky"}

type staticError struct{ msg string }

func (e *staticError) Error() string { return e.msg }
