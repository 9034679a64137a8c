// Package task implements the process-local handle a session's running
// turn is addressed by: an input stream callers push user messages onto,
// an output stream the turn's events are written to, and a goroutine
// driving a Runner between them until the turn reaches DONE, WAIT, or
// ERROR.
//
// Grounded on internal/mcp/manager.go's mutex-guarded map-of-handles
// pattern (there: server id -> *Client; here: task id -> *Task), since
// this spec's task registry is the same shape: one long-lived handle per
// key, looked up and mutated under a single RWMutex, with one owner.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/agentexec/internal/streams"
)

// Status is a Task's terminal or in-flight state, mirrored onto the
// owning session's status by the Runner.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusWaiting Status = "WAITING"
	StatusDone    Status = "DONE"
	StatusError   Status = "ERROR"
)

// Runner drives one task's turn to completion. Implementations are
// expected to: ensure the session's sandbox is ready and any MCP/A2A
// dependencies are initialized, drain Input for the turn's user message,
// run the plan/execute/replan/summarize flow, write every event it
// produces to Output, and persist the resulting session state.
type Runner interface {
	Run(ctx context.Context, t *Task) (Status, error)
}

// Task is one session's in-flight turn: its input/output streams, the
// Runner driving it, and the goroutine lifecycle around that.
type Task struct {
	ID        string
	SessionID string
	Input     streams.Stream
	Output    streams.Stream

	mu     sync.Mutex
	status Status
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry is the process-local, in-memory map of live Tasks, keyed by
// task id. There is exactly one Registry per process; tasks not present
// in it are assumed not running on this process.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Invoke starts runner against a fresh Task for sessionID, registers it,
// and returns immediately; the turn runs in its own goroutine until it
// reaches a terminal status or ctx is canceled. Calling Invoke again for
// a sessionID that already has a live task returns the existing Task
// instead of starting a second one.
func (r *Registry) Invoke(ctx context.Context, taskID, sessionID string, input, output streams.Stream, runner Runner) *Task {
	r.mu.Lock()
	if existing, ok := r.tasks[taskID]; ok {
		r.mu.Unlock()
		return existing
	}

	runCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		ID:        taskID,
		SessionID: sessionID,
		Input:     input,
		Output:    output,
		status:    StatusRunning,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.tasks[taskID] = t
	r.mu.Unlock()

	go func() {
		defer close(t.done)
		status, err := runner.Run(runCtx, t)
		t.mu.Lock()
		t.status = status
		t.err = err
		t.mu.Unlock()

		if status != StatusWaiting {
			r.destroy(taskID)
		}
	}()

	return t
}

// Get resolves a live Task by id.
func (r *Registry) Get(taskID string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[taskID]
	return t, ok
}

// Cancel stops the task's run context; the Runner is expected to observe
// ctx.Done and return promptly. It does not remove the task from the
// registry -- the run goroutine's own completion does that.
func (r *Registry) Cancel(taskID string) error {
	r.mu.RLock()
	t, ok := r.tasks[taskID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task: %s not found", taskID)
	}
	t.cancel()
	return nil
}

// destroy removes taskID from the registry, releasing the process-local
// handle. It does not touch the underlying streams, which outlive the
// task and are reopened on the next Invoke for the same session.
func (r *Registry) destroy(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, taskID)
}

// Wait blocks until t's runner returns or timeout elapses, then reports
// its terminal status and error.
func (t *Task) Wait(timeout time.Duration) (Status, error, bool) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.status, t.err, true
	case <-time.After(timeout):
		return "", nil, false
	}
}

// Status returns the task's current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
