package llm

import (
	"context"
	"strings"
	"time"
)

// RetryConfig bounds the retry/backoff a provider adapter applies around a
// single transport call, mirroring the teacher's AnthropicConfig
// MaxRetries/RetryDelay fields (internal/agent/providers/anthropic.go).
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryConfig matches the teacher's provider defaults (3 retries,
// 1s base delay, doubled per attempt).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second}
}

func (c RetryConfig) sanitized() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	return c
}

// withRetry runs fn, retrying isRetryable errors up to cfg.MaxRetries times
// with delay doubling each attempt, same as the teacher's provider loop.
func withRetry(ctx context.Context, cfg RetryConfig, isRetryable func(error) bool, fn func() error) error {
	cfg = cfg.sanitized()
	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxRetries || !isRetryable(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

// isRetryableMessage classifies transient transport errors by message
// content, following internal/agent/providers/anthropic.go's
// isRetryableError heuristics (rate limits, 5xx, timeouts, connection
// resets) generalized across all three provider adapters here.
func isRetryableMessage(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	substrings := []string{
		"rate_limit", "429", "too many requests",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"timeout", "deadline exceeded",
		"connection reset", "connection refused", "no such host",
	}
	for _, s := range substrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
