// Package persistence defines the Store interface the activation core
// writes bot run/log/state records through, plus a retry-log-swallow
// helper that guarantees persistence failures never interrupt
// activation.
//
// The retry-then-log-and-swallow shape is grounded on the teacher's
// internal/nostr/publisher.go Publish method: attempt the operation,
// retry transient failures, and on final failure log rather than
// propagate — persistence (like Nostr broadcast) is best-effort from
// the caller's point of view.
package persistence

import (
	"context"
	"log"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
)

// RunStatus is the terminal state of a completed bot run.
type RunStatus string

const (
	RunStatusOK        RunStatus = "ok"
	RunStatusError     RunStatus = "error"
	RunStatusCancelled RunStatus = "cancelled"
)

// Store is every persistence touchpoint the activation core needs.
// Implementations must not block the caller on a healthy path for more
// than a single round trip; retries/backoff are the caller's
// responsibility via WithRetry.
type Store interface {
	CreateBotRun(ctx context.Context, runID, bot, trigger string, startedAt time.Time) error
	CompleteBotRun(ctx context.Context, runID string, status RunStatus, output string, inTokens, outTokens int, cost float64) error
	CreateBotLog(ctx context.Context, runID, level, eventType, message string, data map[string]any) error
	UpsertBotRecord(ctx context.Context, name, displayName string, cfg config.BotConfig) error
	UpdateBotState(ctx context.Context, name string, status string, lastRunAt *time.Time) error
}

// RetryPolicy is the linear backoff schedule for persistence retries:
// 500ms * (attempt+1), up to MaxAttempts extra tries after the first.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy allows 2 extra attempts at 500ms, 1s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, BaseDelay: 500 * time.Millisecond}

// WithRetry runs fn, retrying on error per DefaultRetryPolicy's linear
// backoff, and logs (rather than returns) the final error if every
// attempt fails. label identifies the operation in the log line.
func WithRetry(ctx context.Context, label string, fn func(context.Context) error) {
	policy := DefaultRetryPolicy
	var lastErr error
	for attempt := 0; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			log.Printf("[persistence] %s: context done before attempt %d: %v", label, attempt, err)
			return
		}
		if err := fn(ctx); err != nil {
			lastErr = err
			if attempt < policy.MaxAttempts {
				delay := time.Duration(attempt+1) * policy.BaseDelay
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					log.Printf("[persistence] %s: context done during backoff: %v", label, ctx.Err())
					return
				case <-timer.C:
				}
				continue
			}
			break
		}
		return
	}
	log.Printf("[persistence] %s: failed after %d attempts, swallowing: %v", label, policy.MaxAttempts+1, lastErr)
}
