// Package chat implements the Chat Orchestrator: the entry point that
// accepts one user turn for a session, locates or creates the session's
// Task, enqueues the turn, and streams back the events the turn produces
// from a client-supplied resume point.
//
// Grounded structurally on internal/tasks/executor.go's AgentExecutor
// (resolve session -> dispatch -> stream/collect response), but reworked
// into a two-stream design: input is enqueued on the Task's input stream
// and the caller reads the Task's *output* stream instead of receiving a
// single synchronous reply.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentexec/internal/apperrors"
	"github.com/haasonsaas/agentexec/internal/metrics"
	"github.com/haasonsaas/agentexec/internal/session"
	"github.com/haasonsaas/agentexec/internal/streams"
	"github.com/haasonsaas/agentexec/internal/task"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// Request is one Chat invocation's input, mirroring the
// `POST /sessions/{id}/chat` body at the HTTP boundary.
type Request struct {
	SessionID           string
	Message             string
	AttachmentPaths     []string
	ResumeAfterEventID  string
}

// DefaultTailBlock is how long each output_stream.tail call blocks
// waiting for the next event before the orchestrator's read loop polls
// again; it does not bound the overall Chat call.
const DefaultTailBlock = 2 * time.Second

// Orchestrator implements the six-step Chat flow: resolve session, resolve
// or create its Task, enqueue the turn, start or join the run loop, tail
// the output stream, and update unread/latest-message bookkeeping.
type Orchestrator struct {
	Store   session.Store
	Tasks   *task.Registry
	Streams streams.Factory
	Runner  task.Runner

	// TailBlock overrides DefaultTailBlock; zero means use the default.
	TailBlock time.Duration

	// Metrics records loop-iteration outcomes and output-stream depth as
	// readLoop forwards events. Nil disables metrics recording.
	Metrics *metrics.Metrics
}

// Chat runs spec §4.9 steps 1-6 and returns a channel of the events the
// turn produces, starting strictly after req.ResumeAfterEventID. The
// channel is closed once a done/error/wait event has been delivered, the
// context is canceled, or an internal error occurs (in which case a
// single synthesized error event precedes the close).
func (o *Orchestrator) Chat(ctx context.Context, req Request) (<-chan models.Event, error) {
	if req.SessionID == "" {
		return nil, apperrors.BadRequestf("chat: session id is required")
	}

	sess, err := o.Store.Get(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.KindNotFound, err, "chat: session %s not found", req.SessionID)
		}
		return nil, apperrors.Wrap(apperrors.KindServer, err, "chat: load session %s", req.SessionID)
	}

	// A resume-only read (no new message) against a session whose task
	// already reached a terminal state has nothing live to tail: replay
	// the persisted history instead of minting a task nobody will ever
	// feed input to.
	if req.Message == "" {
		if sess.TaskID == "" {
			return o.replayHistory(sess, req.ResumeAfterEventID), nil
		}
		if _, ok := o.Tasks.Get(sess.TaskID); !ok {
			return o.replayHistory(sess, req.ResumeAfterEventID), nil
		}
	}

	t, err := o.resolveTask(ctx, sess)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindServer, err, "chat: resolve task")
	}

	if req.Message != "" {
		if err := o.enqueueMessage(ctx, sess, t, req); err != nil {
			return nil, apperrors.Wrap(apperrors.KindServer, err, "chat: enqueue message")
		}
	}

	out := make(chan models.Event, 16)
	go o.readLoop(ctx, sess.ID, t, req.ResumeAfterEventID, out)
	return out, nil
}

// replayHistory serves a resume-only request for a session with no live
// task by replaying persisted events strictly after afterID, then
// closing -- the terminal-state counterpart to readLoop's live tail,
// preserving spec §8 Invariant 7 (prefix-stable suffix of history) even
// once the turn that produced those events has finished.
func (o *Orchestrator) replayHistory(sess *models.Session, afterID string) <-chan models.Event {
	out := make(chan models.Event, len(sess.Events))
	go func() {
		defer close(out)
		defer o.resetUnreadDetached(sess.ID)
		seen := afterID == ""
		for _, ev := range sess.Events {
			if !seen {
				if ev.ID == afterID {
					seen = true
				}
				continue
			}
			out <- ev
		}
	}()
	return out
}

// resolveTask implements step 2: reuse the session's live task if the
// registry still has it, otherwise start a fresh one. A session whose
// prior task already reached DONE/ERROR (and was therefore deregistered)
// gets a brand new task id, per spec §8 Invariant 2 ("at most one
// non-done Task registered per Session").
func (o *Orchestrator) resolveTask(ctx context.Context, sess *models.Session) (*task.Task, error) {
	if sess.TaskID != "" {
		if existing, ok := o.Tasks.Get(sess.TaskID); ok {
			return existing, nil
		}
	}

	taskID := uuid.NewString()
	input := o.Streams.Open(fmt.Sprintf("task:input:%s", taskID))
	output := o.Streams.Open(fmt.Sprintf("task:output:%s", taskID))

	t := o.Tasks.Invoke(ctx, taskID, sess.ID, input, output, o.Runner)
	sess.TaskID = taskID
	return t, nil
}

// enqueueMessage implements step 3: update latest-message metadata,
// persist a user message event directly to session history (it never
// passes through the output stream, since that stream only carries
// events the Task's runner produces), and push the turn onto the task's
// input stream.
func (o *Orchestrator) enqueueMessage(ctx context.Context, sess *models.Session, t *task.Task, req Request) error {
	now := time.Now().UTC()
	sess.LatestMessage = req.Message
	sess.LatestMessageAt = now

	turn := task.TurnInput{Message: req.Message, AttachmentPaths: req.AttachmentPaths}
	body, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn input: %w", err)
	}
	entryID, err := t.Input.Put(ctx, body)
	if err != nil {
		return fmt.Errorf("put input: %w", err)
	}

	sess.Events = append(sess.Events, models.Event{
		ID:        entryID,
		Type:      models.EventMessage,
		CreatedAt: now,
		Message:   &models.MessagePayload{Role: models.RoleUser, Message: req.Message},
	})

	if err := o.Store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// readLoop implements step 4: tail output_stream from afterID, clearing
// the session's unread counter and forwarding every event until done,
// error, or wait is observed, ctx is canceled, or a read fails (step 5).
// Step 6's detached unread-count reset always runs, regardless of how
// the loop exits.
func (o *Orchestrator) readLoop(ctx context.Context, sessionID string, t *task.Task, afterID string, out chan<- models.Event) {
	defer close(out)
	defer o.resetUnreadDetached(sessionID)

	block := o.TailBlock
	if block <= 0 {
		block = DefaultTailBlock
	}

	cursor := afterID
	if cursor == "" {
		cursor = "0"
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry, err := t.Output.Tail(ctx, cursor, block)
		if err != nil {
			o.emitError(ctx, sessionID, out, err)
			return
		}
		if entry == nil {
			continue
		}

		var ev models.Event
		if err := json.Unmarshal(entry.Payload, &ev); err != nil {
			o.emitError(ctx, sessionID, out, err)
			return
		}
		// The stream entry's own id is authoritative, not whatever (if
		// anything) the producer embedded in the marshaled payload --
		// the producer assigns Event.ID only after the Put that yields
		// it, so the wire payload predates the id it's keyed by.
		ev.ID = entry.ID
		cursor = entry.ID
		o.recordEventMetrics(ctx, t, ev)

		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
		o.clearUnread(ctx, sessionID)

		switch ev.Type {
		case models.EventDone, models.EventError, models.EventWait:
			return
		}
	}
}

// recordEventMetrics updates LoopIterations (by outcome) and StreamDepth
// (for the task's output stream) as each event reaches a reader. It is a
// no-op when o.Metrics is nil.
func (o *Orchestrator) recordEventMetrics(ctx context.Context, t *task.Task, ev models.Event) {
	if o.Metrics == nil {
		return
	}
	outcome := "message"
	switch ev.Type {
	case models.EventTool:
		outcome = "tool_call"
	case models.EventError:
		outcome = "error"
	}
	o.Metrics.LoopIterations.WithLabelValues(outcome).Inc()

	if depth, err := t.Output.Size(ctx); err == nil {
		o.Metrics.StreamDepth.WithLabelValues("output", t.ID).Set(float64(depth))
	}
}

// clearUnread implements the per-event half of step 4: every event
// delivered to a live reader means the client has seen it, so the
// unread counter resets immediately rather than waiting for the
// detached reset in resetUnreadDetached (which exists only to cover the
// case where the client disconnects before another event arrives).
func (o *Orchestrator) clearUnread(ctx context.Context, sessionID string) {
	sess, err := o.Store.Get(ctx, sessionID)
	if err != nil || sess.UnreadCount == 0 {
		return
	}
	sess.UnreadCount = 0
	_ = o.Store.Save(ctx, sess)
}

// emitError implements step 5: persist and yield a single error event
// when the read loop itself fails (as opposed to an error event the
// Task's runner produced, which is already persisted by the runner).
func (o *Orchestrator) emitError(ctx context.Context, sessionID string, out chan<- models.Event, cause error) {
	ev := models.Event{
		Type:      models.EventError,
		CreatedAt: time.Now().UTC(),
		Error:     &models.ErrorPayload{Message: cause.Error()},
	}
	if sess, err := o.Store.Get(ctx, sessionID); err == nil {
		sess.Events = append(sess.Events, ev)
		_ = o.Store.Save(ctx, sess)
	}
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

// resetUnreadDetached implements step 6: the unread-count reset runs on
// a context.Background()-rooted goroutine so that the calling request's
// cancellation (e.g. an SSE client disconnecting) cannot abort the
// write -- a documented correctness requirement (spec §4.9/§9), grounded
// on the teacher's detached `go func() { ... }()` telemetry-flush
// pattern used in internal/agent/runtime.go for writes that must outlive
// the originating request.
func (o *Orchestrator) resetUnreadDetached(sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sess, err := o.Store.Get(ctx, sessionID)
		if err != nil {
			return
		}
		sess.UnreadCount = 0
		_ = o.Store.Save(ctx, sess)
	}()
}
