package executor

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// ErrorKind classifies a bot-run failure for retry/visibility purposes.
type ErrorKind string

const (
	ErrorRateLimit  ErrorKind = "rate_limit"
	ErrorTimeout    ErrorKind = "timeout"
	ErrorAuth       ErrorKind = "auth"
	ErrorConnection ErrorKind = "connection"
	ErrorCancelled  ErrorKind = "cancelled"
	ErrorRuntime    ErrorKind = "runtime"
)

// ClassifyError buckets a bot-run error into one of the kinds above, by
// the same lower-cased substring matching the teacher's
// internal/llm/retry.go isRetryableLLMError uses to tell transient
// failures from hard ones, generalized from LLM-call errors to bot-run
// errors (timeouts, auth failures, connection refusals, and outright
// cancellation).
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return ErrorTimeout
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return ErrorRateLimit
	case strings.Contains(msg, "auth") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return ErrorAuth
	case strings.Contains(msg, "connection") || strings.Contains(msg, "connect:") || strings.Contains(msg, "dial"):
		return ErrorConnection
	default:
		return ErrorRuntime
	}
}

// Retryable reports whether a run failure with this classification
// should be retried at all. rate_limit, timeout, and connection failures
// are transient and worth another attempt; auth failures, explicit
// cancellation, and unclassified runtime errors are not, subject to
// RetryPolicy's attempt cap.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorRateLimit, ErrorTimeout, ErrorConnection:
		return true
	default:
		return false
	}
}

// RetryPolicy is the exponential backoff schedule for retrying a failed
// bot run, grounded on the same shape as llm.RetryConfig/backoffForAttempt
// (base * 2^attempt) but expressed as run-level retries rather than
// per-LLM-call retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy allows up to 2 additional attempts with a 5-second
// base delay, i.e. 5s, then 10s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, BaseDelay: 5 * time.Second}

// DelayForAttempt returns how long to wait before retry attempt
// (0-indexed).
func (p RetryPolicy) DelayForAttempt(attempt int) time.Duration {
	mult := math.Pow(2, float64(attempt))
	return time.Duration(float64(p.BaseDelay) * mult)
}
