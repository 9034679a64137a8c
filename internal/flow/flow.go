// Package flow drives one session turn end to end: plan, execute steps
// one at a time, replan between steps, summarize, and resume correctly
// whichever of PENDING/RUNNING/WAITING state the session was left in.
//
// Grounded on internal/tasks/executor.go's AgentExecutor.Execute pipeline
// (get-or-create session state -> drive the agent runtime -> collect and
// persist the response), generalized from a single runtime.Process call
// into the plan/execute/replan/summarize state machine this spec's
// multi-step turns need.
package flow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/agentexec/internal/agentloop"
	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/internal/planner"
	"github.com/haasonsaas/agentexec/internal/react"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// State names the Flow state machine's phases.
type State string

const (
	StateIdle        State = "IDLE"
	StatePlanning    State = "PLANNING"
	StateExecuting   State = "EXECUTING"
	StateUpdating    State = "UPDATING"
	StateSummarizing State = "SUMMARIZING"
	StateCompleted   State = "COMPLETED"
)

// Flow coordinates a Planner and a ReAct agent over one session's memory
// and plan to drive a turn to completion or suspension.
type Flow struct {
	planner *planner.Planner
	react   *react.ReAct
	model   string
	state   State
}

// New builds a Flow bound to the given planner and react agent.
func New(p *planner.Planner, r *react.ReAct, model string) *Flow {
	return &Flow{planner: p, react: r, model: model, state: StateIdle}
}

// State returns the flow's current phase.
func (f *Flow) State() State { return f.state }

// Resume drives session forward from whatever state it was last left in,
// per spec §4.7's three resumption rules:
//   - PENDING: this is a fresh turn; start at PLANNING.
//   - RUNNING: the session was mid-turn when interrupted (e.g. process
//     restart); RollBackForMessage bridges a trailing message_ask_user
//     call with the new message (or else drops the last message), then
//     the turn replans from PLANNING.
//   - WAITING: the step is suspended on message_ask_user; bridge the
//     user's reply into memory and continue EXECUTING the same step.
func (f *Flow) Resume(ctx context.Context, session *models.Session, mem *memory.Memory, userMessage string, attachmentPaths []string, sink agentloop.EventSink) error {
	switch session.Status {
	case models.SessionPending:
		return f.runFromPlanning(ctx, session, mem, userMessage, attachmentPaths, sink)
	case models.SessionRunning:
		mem.RollBackForMessage(serializeBridgedMessage(userMessage))
		return f.runFromPlanning(ctx, session, mem, userMessage, attachmentPaths, sink)
	case models.SessionWaiting:
		mem.RollBackForMessage(serializeBridgedMessage(userMessage))
		return f.runFromExecuting(ctx, session, mem, sink)
	default:
		return fmt.Errorf("flow: cannot resume session in status %s", session.Status)
	}
}

// bridgedMessage is the minimal JSON shape a message_ask_user reply is
// serialized as before being bridged into memory as a synthetic
// tool-result (spec Invariant 6, §4.4's roll_back_for_message).
type bridgedMessage struct {
	Message string `json:"message"`
}

func serializeBridgedMessage(userMessage string) string {
	body, err := json.Marshal(bridgedMessage{Message: userMessage})
	if err != nil {
		return userMessage
	}
	return string(body)
}

func (f *Flow) runFromPlanning(ctx context.Context, session *models.Session, mem *memory.Memory, userMessage string, attachmentPaths []string, sink agentloop.EventSink) error {
	f.state = StatePlanning
	session.Status = models.SessionRunning

	plan, err := f.planner.CreatePlan(ctx, mem, userMessage, attachmentPaths, sink)
	if err != nil {
		return fmt.Errorf("flow: create plan: %w", err)
	}
	session.Plans = append(session.Plans, plan)

	return f.drive(ctx, session, mem, plan, sink)
}

func (f *Flow) runFromExecuting(ctx context.Context, session *models.Session, mem *memory.Memory, sink agentloop.EventSink) error {
	if len(session.Plans) == 0 {
		return fmt.Errorf("flow: cannot resume WAITING session with no plan")
	}
	plan := session.Plans[len(session.Plans)-1]
	session.Status = models.SessionRunning
	return f.drive(ctx, session, mem, plan, sink)
}

// drive runs the EXECUTING/UPDATING cycle until the plan has no more
// steps, then summarizes. It returns nil with session.Status left at
// WAITING if a step suspended on message_ask_user.
func (f *Flow) drive(ctx context.Context, session *models.Session, mem *memory.Memory, plan *models.Plan, sink agentloop.EventSink) error {
	for {
		step := plan.NextStep()
		if step == nil {
			break
		}

		f.state = StateExecuting
		err := f.react.ExecuteStep(ctx, mem, step, stepPrompt(plan, step), sink)
		if err == react.ErrAwaitingUser {
			f.state = StateIdle
			session.Status = models.SessionWaiting
			return nil
		}
		if err != nil {
			f.state = StateIdle
			session.Status = models.SessionCompleted
			return fmt.Errorf("flow: execute step %s: %w", step.ID, err)
		}

		if plan.NextStep() == nil {
			break
		}

		f.state = StateUpdating
		if _, err := f.planner.UpdatePlan(ctx, mem, plan, step, sink); err != nil {
			f.state = StateIdle
			session.Status = models.SessionCompleted
			return fmt.Errorf("flow: update plan: %w", err)
		}
	}

	f.state = StateSummarizing
	if err := f.react.Summarize(ctx, mem, sink); err != nil {
		f.state = StateIdle
		session.Status = models.SessionCompleted
		return fmt.Errorf("flow: summarize: %w", err)
	}

	plan.Status = models.PlanCompleted
	if err := sink(ctx, models.Event{Type: models.EventPlan, Plan: &models.PlanPayload{Plan: plan}}); err != nil {
		return err
	}
	if err := sink(ctx, models.Event{Type: models.EventDone}); err != nil {
		return err
	}

	f.state = StateCompleted
	session.Status = models.SessionCompleted
	return nil
}

func stepPrompt(plan *models.Plan, step *models.Step) string {
	return fmt.Sprintf("Goal: %s\n\nCurrent step: %s\n\nRespond with a JSON object {\"success\", \"result\", \"attachments\"} once the step is done.", plan.Goal, step.Description)
}
