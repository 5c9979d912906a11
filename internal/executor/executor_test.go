package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/events"
)

func TestClassifyErrorBuckets(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{context.Canceled, ErrorCancelled},
		{context.DeadlineExceeded, ErrorTimeout},
		{errors.New("request timed out"), ErrorTimeout},
		{errors.New("429 rate limit exceeded"), ErrorRateLimit},
		{errors.New("401 unauthorized"), ErrorAuth},
		{errors.New("dial tcp: connection refused"), ErrorConnection},
		{errors.New("something exploded"), ErrorRuntime},
	}
	for _, c := range cases {
		if got := ClassifyError(c.err); got != c.want {
			t.Errorf("ClassifyError(%q) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestRetryableExcludesAuthAndCancelled(t *testing.T) {
	if ErrorAuth.Retryable() {
		t.Fatal("auth errors should not be retryable")
	}
	if ErrorCancelled.Retryable() {
		t.Fatal("cancelled errors should not be retryable")
	}
	if !ErrorTimeout.Retryable() {
		t.Fatal("timeout errors should be retryable")
	}
}

func TestRetryPolicyDelaysDouble(t *testing.T) {
	p := DefaultRetryPolicy
	if p.DelayForAttempt(0) != 5*time.Second {
		t.Fatalf("expected 5s for attempt 0, got %v", p.DelayForAttempt(0))
	}
	if p.DelayForAttempt(1) != 10*time.Second {
		t.Fatalf("expected 10s for attempt 1, got %v", p.DelayForAttempt(1))
	}
	if p.DelayForAttempt(2) != 20*time.Second {
		t.Fatalf("expected 20s for attempt 2, got %v", p.DelayForAttempt(2))
	}
}

func TestProcessExecutorMissingCommand(t *testing.T) {
	p := NewProcessExecutor(nil)
	cfg := config.BotConfig{Name: "job_scout"}
	_, err := p.Execute(context.Background(), cfg, events.Event{Type: "job:found"})
	if err == nil {
		t.Fatal("expected error when exec.command is unset")
	}
}

func TestProcessExecutorRunsAndCapturesOutput(t *testing.T) {
	p := NewProcessExecutor(map[string]string{"EXTRA": "1"})
	cfg := config.BotConfig{
		Name:           "job_scout",
		TimeoutMinutes: 1,
		Exec:           config.ExecConfig{Command: "echo", Args: []string{"hello"}},
	}
	result, err := p.Execute(context.Background(), cfg, events.Event{Type: "job:found"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result.Output != "hello\n" {
		t.Fatalf("expected captured output %q, got %q", "hello\n", result.Output)
	}
}

func TestProcessExecutorReportsTimeoutDistinctly(t *testing.T) {
	p := NewProcessExecutor(nil)
	cfg := config.BotConfig{
		Name:           "job_scout",
		TimeoutMinutes: 0,
		Exec:           config.ExecConfig{Command: "sleep", Args: []string{"5"}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Execute(ctx, cfg, events.Event{Type: "job:found"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if kind := ClassifyError(err); kind != ErrorTimeout {
		t.Fatalf("expected error classified as %q, got %q (%v)", ErrorTimeout, kind, err)
	}
}
