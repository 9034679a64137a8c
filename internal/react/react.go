// Package react implements the executing half of spec §4.6 (C8): an
// agent loop specialized with an execution system prompt and a
// JSON-object response format, whose final JSON reply patches the step
// it was asked to drive.
//
// Grounded on the same role-specialization pattern as internal/planner
// (internal/agent/routing's per-role AgenticLoop), with the
// message_ask_user CALLING/CALLED special-casing unique to this spec
// layered on top of a plain agentloop.Loop.Run.
package react

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/agentexec/internal/agentloop"
	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// ErrAwaitingUser is returned by ExecuteStep when the step's agent called
// message_ask_user and the step must remain unresolved until the user
// responds (spec §4.6: "stop producing further events for this step").
var ErrAwaitingUser = errors.New("react: awaiting user input")

var errAskUserCalled = errors.New("react: message_ask_user called")

// ReAct drives one agentloop.Loop to execute a single Plan step.
type ReAct struct {
	loop  *agentloop.Loop
	model string
}

// New binds a ReAct agent to loop, using model for every completion request.
func New(loop *agentloop.Loop, model string) *ReAct {
	return &ReAct{loop: loop, model: model}
}

// stepPatch is the JSON shape the final assistant message is parsed as.
type stepPatch struct {
	Success     bool         `json:"success"`
	Result      string       `json:"result"`
	Attachments []models.File `json:"attachments,omitempty"`
}

// ExecuteStep sets step.Status = RUNNING and drives the agent loop on
// message, special-casing message_ask_user and the final message event
// exactly as spec §4.6 describes. It returns ErrAwaitingUser if the step
// suspended waiting on the user, or a wrapped error if the step failed.
func (r *ReAct) ExecuteStep(ctx context.Context, mem *memory.Memory, step *models.Step, message string, sink agentloop.EventSink) error {
	step.Status = models.StepRunning
	if err := sink(ctx, models.Event{Type: models.EventStep, Step: &models.StepPayload{Step: step}}); err != nil {
		return err
	}

	wrapped := r.wrapSink(sink)
	content, err := r.loop.Run(ctx, mem, r.model, message, "json_object", "", wrapped)
	if errors.Is(err, errAskUserCalled) {
		return ErrAwaitingUser
	}
	if err != nil {
		step.Status = models.StepFailed
		step.Error = err.Error()
		if sinkErr := sink(ctx, models.Event{Type: models.EventStep, Step: &models.StepPayload{Step: step}}); sinkErr != nil {
			return sinkErr
		}
		return fmt.Errorf("react: execute step: %w", err)
	}

	var patch stepPatch
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &patch); err != nil {
		step.Status = models.StepFailed
		step.Error = err.Error()
		if sinkErr := sink(ctx, models.Event{Type: models.EventStep, Step: &models.StepPayload{Step: step}}); sinkErr != nil {
			return sinkErr
		}
		return fmt.Errorf("react: parse step patch: %w", err)
	}

	step.Success = patch.Success
	step.Result = patch.Result
	step.Attachments = patch.Attachments
	step.Status = models.StepCompleted

	if err := sink(ctx, models.Event{Type: models.EventStep, Step: &models.StepPayload{Step: step}}); err != nil {
		return err
	}
	return sink(ctx, models.Event{
		Type:    models.EventMessage,
		Message: &models.MessagePayload{Role: models.RoleAssistant, Message: step.Result, Attachments: step.Attachments},
	})
}

// wrapSink intercepts message_ask_user tool events and suppresses the raw
// final message event loop.Run would otherwise emit, since ExecuteStep
// derives its own message from the parsed step patch instead.
func (r *ReAct) wrapSink(sink agentloop.EventSink) agentloop.EventSink {
	return func(ctx context.Context, ev models.Event) error {
		switch {
		case ev.Type == models.EventTool && ev.Tool.FunctionName == toolsys.AskUserFunction:
			switch ev.Tool.Status {
			case models.ToolCalling:
				var args struct {
					Text string `json:"text"`
				}
				_ = json.Unmarshal([]byte(ev.Tool.FunctionArgs), &args)
				return sink(ctx, models.Event{
					Type:    models.EventMessage,
					Message: &models.MessagePayload{Role: models.RoleAssistant, Message: args.Text},
				})
			case models.ToolCalled:
				if err := sink(ctx, models.Event{Type: models.EventWait}); err != nil {
					return err
				}
				return errAskUserCalled
			}
			return nil
		case ev.Type == models.EventMessage:
			return nil
		default:
			return sink(ctx, ev)
		}
	}
}

// summaryPatch is the JSON shape Summarize expects the final assistant
// message to carry.
type summaryPatch struct {
	Message     string        `json:"message"`
	Attachments []models.File `json:"attachments,omitempty"`
}

// Summarize issues a summarizing prompt, parses the JSON result, and
// emits a message event with the assembled attachments (spec §4.6).
func (r *ReAct) Summarize(ctx context.Context, mem *memory.Memory, sink agentloop.EventSink) error {
	suppressed := func(ctx context.Context, ev models.Event) error {
		if ev.Type == models.EventMessage {
			return nil
		}
		return sink(ctx, ev)
	}

	content, err := r.loop.Run(ctx, mem, r.model, "Summarize the work done in this turn for the user.", "json_object", "", suppressed)
	if err != nil {
		return fmt.Errorf("react: summarize: %w", err)
	}

	var patch summaryPatch
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &patch); err != nil {
		return fmt.Errorf("react: parse summary JSON: %w", err)
	}

	return sink(ctx, models.Event{
		Type:    models.EventMessage,
		Message: &models.MessagePayload{Role: models.RoleAssistant, Message: patch.Message, Attachments: patch.Attachments},
	})
}
