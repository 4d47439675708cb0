// Package retry retries transient failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MaxDelay caps the backoff between attempts.
const MaxDelay = 30 * time.Second

// Policy controls RetryWithBackoff. A nil Retryable means IsRetryableError.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Retryable  func(error) bool
	Logger     *slog.Logger
}

var transientPatterns = []string{
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure",
	"try again",
	"no such host",
	"network is unreachable",
	"broken pipe",
	"connection timed out",
	"too many requests",
	"service unavailable",
}

// IsRetryableError reports whether err looks transient. Context
// cancellation is never retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

// IsRetryableStatus reports whether an HTTP status code is worth retrying:
// throttling (429) and the transient 5xx codes Graph returns under load.
func IsRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// Backoff returns the delay before retry number attempt (zero based).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt > 16 {
		return MaxDelay
	}
	delay := base * time.Duration(1<<uint(attempt))
	if delay > MaxDelay || delay < 0 {
		delay = MaxDelay
	}
	return delay
}

// RetryWithBackoff runs operation until it succeeds, fails permanently or
// p.MaxRetries retries have been spent. Delays double from p.BaseDelay up to
// MaxDelay.
//
// Example usage:
//
//	err := retry.RetryWithBackoff(ctx, retry.Policy{MaxRetries: 3, BaseDelay: 2 * time.Second}, func() error {
//	    return listGroups(ctx)
//	})
func RetryWithBackoff(ctx context.Context, p Policy, operation func() error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			if attempt > 0 && p.Logger != nil {
				p.Logger.Info("Operation succeeded after retries", "retries", attempt)
			}
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxRetries {
			return fmt.Errorf("operation failed after %d retries: %w", p.MaxRetries, lastErr)
		}

		delay := Backoff(p.BaseDelay, attempt)
		if p.Logger != nil {
			p.Logger.Warn("Retryable error encountered",
				"attempt", attempt+1, "maxRetries", p.MaxRetries, "error", lastErr, "delay", delay)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return lastErr
}
