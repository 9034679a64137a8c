package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/agentexec/internal/agentloop"
	"github.com/haasonsaas/agentexec/internal/flow"
	"github.com/haasonsaas/agentexec/internal/logging"
	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/internal/sandbox"
	"github.com/haasonsaas/agentexec/internal/streams"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// TurnInput is the JSON payload a caller pushes onto a Task's Input
// stream to start or continue one turn.
type TurnInput struct {
	Message         string   `json:"message"`
	AttachmentPaths []string `json:"attachment_paths,omitempty"`
}

// SessionStore is the slice of session persistence a Runner needs:
// loading the session and memory a turn resumes, and saving them back
// once the turn reaches a terminal or suspended state. internal/session
// provides the concrete implementations.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	LoadMemory(ctx context.Context, sessionID, agentID string) (*memory.Memory, error)
	SaveMemory(ctx context.Context, sessionID, agentID string, mem *memory.Memory) error
}

// SessionRunner is the default Runner: it ensures the session's sandbox
// is ready, builds the tool registry and Flow for this turn, drains one
// message off the task's input stream, drives the flow, and persists
// everything it touched.
//
// Grounded on internal/tasks/executor.go's AgentExecutor.Execute
// (resolve session -> build message -> process -> persist response),
// generalized to this spec's stream-fed, event-sinking turn instead of a
// single chunked runtime.Process call.
type SessionRunner struct {
	Store       SessionStore
	Sandboxes   *sandbox.Manager
	BuildFlow   func(ctx context.Context, session *models.Session, sess *sandbox.Session) (*flow.Flow, error)
	InputPoll   time.Duration
	SystemAgent string
}

// Run implements Runner.
func (r *SessionRunner) Run(ctx context.Context, t *Task) (Status, error) {
	log := logging.ForSession(ctx, t.SessionID, t.ID)

	session, err := r.Store.Get(ctx, t.SessionID)
	if err != nil {
		return StatusError, fmt.Errorf("task: load session %s: %w", t.SessionID, err)
	}

	sandboxSess, err := r.Sandboxes.Create(ctx, session.ID)
	if err != nil {
		return StatusError, fmt.Errorf("task: create sandbox: %w", err)
	}
	if err := r.Sandboxes.EnsureReady(ctx, sandboxSess); err != nil {
		return StatusError, fmt.Errorf("task: sandbox not ready: %w", err)
	}
	session.SandboxID = sandboxSess.ID
	log.Info("sandbox ready", "sandbox_id", sandboxSess.ID)

	f, err := r.BuildFlow(ctx, session, sandboxSess)
	if err != nil {
		return StatusError, fmt.Errorf("task: build flow: %w", err)
	}

	mem, err := r.Store.LoadMemory(ctx, session.ID, r.SystemAgent)
	if err != nil {
		return StatusError, fmt.Errorf("task: load memory: %w", err)
	}

	input, err := r.drainInput(ctx, t)
	if err != nil {
		return StatusError, fmt.Errorf("task: drain input: %w", err)
	}
	log.Info("turn started", "session_status", session.Status)

	sink := r.sinkTo(t, session)
	runErr := f.Resume(ctx, session, mem, input.Message, input.AttachmentPaths, sink)

	if saveErr := r.Store.SaveMemory(ctx, session.ID, r.SystemAgent, mem); saveErr != nil && runErr == nil {
		runErr = fmt.Errorf("task: save memory: %w", saveErr)
	}
	if saveErr := r.Store.Save(ctx, session); saveErr != nil && runErr == nil {
		runErr = fmt.Errorf("task: save session: %w", saveErr)
	}

	if runErr != nil {
		log.Error("turn failed", "error", runErr)
		return StatusError, runErr
	}
	if session.Status == models.SessionWaiting {
		log.Info("turn suspended awaiting user")
		return StatusWaiting, nil
	}
	log.Info("turn completed", "session_status", session.Status)
	return StatusDone, nil
}

// drainInput blocks, polling t.Input, until a TurnInput is available or
// ctx is canceled.
func (r *SessionRunner) drainInput(ctx context.Context, t *Task) (TurnInput, error) {
	poll := r.InputPoll
	if poll <= 0 {
		poll = 2 * time.Second
	}
	for {
		entry, err := t.Input.Pop(ctx)
		if err != nil && err != streams.ErrLockTimeout {
			return TurnInput{}, err
		}
		if entry != nil {
			var in TurnInput
			if err := json.Unmarshal(entry.Payload, &in); err != nil {
				return TurnInput{}, fmt.Errorf("task: unmarshal turn input: %w", err)
			}
			return in, nil
		}
		select {
		case <-ctx.Done():
			return TurnInput{}, ctx.Err()
		case <-time.After(poll):
		}
	}
}

// sinkTo returns an EventSink that appends every event both to the
// task's output stream (for live SSE tailing) and to the session's
// in-memory event history (for the next load).
func (r *SessionRunner) sinkTo(t *Task, session *models.Session) agentloop.EventSink {
	return func(ctx context.Context, ev models.Event) error {
		ev.CreatedAt = time.Now().UTC()
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("task: marshal event: %w", err)
		}
		id, err := t.Output.Put(ctx, body)
		if err != nil {
			return fmt.Errorf("task: write event: %w", err)
		}
		ev.ID = id
		session.Events = append(session.Events, ev)

		switch {
		case ev.Type == models.EventMessage && ev.Message != nil:
			session.LatestMessage = ev.Message.Message
			session.LatestMessageAt = ev.CreatedAt
			session.UnreadCount++
		case ev.Type == models.EventTitle && ev.Title != nil:
			session.Title = ev.Title.Title
		}
		return nil
	}
}
