package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}
	err := withRetry(context.Background(), cfg, isRetryableMessage, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}
	err := withRetry(context.Background(), cfg, isRetryableMessage, func() error {
		attempts++
		return errors.New("invalid api key")
	})
	if err == nil {
		t.Fatalf("expected an error to propagate")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}
	err := withRetry(context.Background(), cfg, isRetryableMessage, func() error {
		attempts++
		return errors.New("timeout")
	})
	if err == nil {
		t.Fatalf("expected the last error to propagate once the budget is exhausted")
	}
	if attempts != 3 {
		t.Fatalf("expected MaxRetries+1 attempts, got %d", attempts)
	}
}

func TestIsRetryableMessageClassifiesKnownTransientErrors(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{errors.New("429 too many requests"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("400 bad request: invalid schema"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := isRetryableMessage(c.err); got != c.retryable {
			t.Errorf("isRetryableMessage(%v) = %v, want %v", c.err, got, c.retryable)
		}
	}
}
