package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// ExecutorConfig bounds a single tool call's timeout and retry/backoff,
// following internal/agent/executor.go's ExecutorConfig with MaxConcurrency
// dropped: §5 forbids parallel tool dispatch within one agent's turn, so
// there is never more than one call in flight to bound.
type ExecutorConfig struct {
	DefaultTimeout  time.Duration
	DefaultRetries  int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// DefaultExecutorConfig mirrors the teacher's DefaultExecutorConfig values.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout:  30 * time.Second,
		DefaultRetries:  2,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
	}
}

func sanitizeExecutorConfig(cfg ExecutorConfig) ExecutorConfig {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.MaxRetryBackoff <= 0 {
		cfg.MaxRetryBackoff = 5 * time.Second
	}
	return cfg
}

// ExecutorMetrics tracks tool dispatch counters, following
// internal/agent/executor.go's ExecutorMetrics.
type ExecutorMetrics struct {
	mu              sync.Mutex
	TotalExecutions int64
	TotalRetries    int64
	TotalFailures   int64
	TotalTimeouts   int64
	TotalPanics     int64
}

// ExecutorMetricsSnapshot is a copy-safe point-in-time read of ExecutorMetrics.
type ExecutorMetricsSnapshot struct {
	TotalExecutions int64
	TotalRetries    int64
	TotalFailures   int64
	TotalTimeouts   int64
	TotalPanics     int64
}

// singleCallExecutor dispatches one tool call at a time against a Registry
// with a per-call timeout, panic recovery, and bounded exponential-backoff
// retry on transport failure. Adapted from internal/agent/executor.go's
// Executor, dropping its semaphore and ExecuteAll fan-out: this spec's loop
// never has more than one call in flight (§4.5.b, §5).
type singleCallExecutor struct {
	registry *toolsys.Registry
	config   ExecutorConfig
	metrics  *ExecutorMetrics
}

func newSingleCallExecutor(registry *toolsys.Registry, config ExecutorConfig) *singleCallExecutor {
	return &singleCallExecutor{
		registry: registry,
		config:   sanitizeExecutorConfig(config),
		metrics:  &ExecutorMetrics{},
	}
}

// Execute dispatches functionName with args, retrying transport-level
// failures (a non-nil Go error from the registry, as opposed to a domain
// failure already folded into ToolResult.Success=false) up to
// config.DefaultRetries times with exponential backoff.
func (e *singleCallExecutor) Execute(ctx context.Context, functionName string, args json.RawMessage) *models.ToolResult {
	var lastResult *models.ToolResult
	var lastErr error
	backoff := e.config.RetryBackoff

	for attempt := 0; attempt <= e.config.DefaultRetries; attempt++ {
		result, err := e.executeWithTimeout(ctx, functionName, args)
		e.metrics.mu.Lock()
		e.metrics.TotalExecutions++
		if attempt > 0 {
			e.metrics.TotalRetries++
		}
		e.metrics.mu.Unlock()

		if err == nil {
			return result
		}
		lastErr = err
		lastResult = result

		if ctx.Err() != nil || attempt >= e.config.DefaultRetries {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		backoff *= 2
		if backoff > e.config.MaxRetryBackoff {
			backoff = e.config.MaxRetryBackoff
		}
	}

	e.metrics.mu.Lock()
	e.metrics.TotalFailures++
	e.metrics.mu.Unlock()

	if lastResult != nil {
		return lastResult
	}
	return &models.ToolResult{Success: false, Message: lastErr.Error()}
}

func (e *singleCallExecutor) executeWithTimeout(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.config.DefaultTimeout)
	defer cancel()

	type outcome struct {
		result *models.ToolResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.metrics.mu.Lock()
				e.metrics.TotalPanics++
				e.metrics.mu.Unlock()
				done <- outcome{err: fmt.Errorf("agentloop: tool %s panicked: %v\n%s", functionName, r, debug.Stack())}
			}
		}()
		result, err := e.registry.Invoke(execCtx, functionName, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-execCtx.Done():
		e.metrics.mu.Lock()
		e.metrics.TotalTimeouts++
		e.metrics.mu.Unlock()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("agentloop: tool %s: %w", functionName, ctx.Err())
		}
		return nil, fmt.Errorf("agentloop: tool %s timed out after %s", functionName, e.config.DefaultTimeout)
	}
}

// Metrics returns a copy-safe snapshot.
func (e *singleCallExecutor) Metrics() ExecutorMetricsSnapshot {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()
	return ExecutorMetricsSnapshot{
		TotalExecutions: e.metrics.TotalExecutions,
		TotalRetries:    e.metrics.TotalRetries,
		TotalFailures:   e.metrics.TotalFailures,
		TotalTimeouts:   e.metrics.TotalTimeouts,
		TotalPanics:     e.metrics.TotalPanics,
	}
}
