// Package planner implements the plan-producing half of spec §4.6 (C8):
// an agent loop specialized with a planning system prompt and a JSON
// response format, used to both create the first Plan for a turn and
// patch it as steps complete.
//
// Grounded on internal/agent/routing's pattern of specializing one
// AgenticLoop per role via prompt/provider selection rather than a
// separate execution engine; here the specialization is purely over
// system prompt and response_format; the underlying iteration is the
// same agentloop.Loop every role shares.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/haasonsaas/agentexec/internal/agentloop"
	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// Planner drives one agentloop.Loop with a JSON-object response format to
// produce and patch Plans.
type Planner struct {
	loop  *agentloop.Loop
	model string
}

// New binds a Planner to loop, using model for every completion request.
func New(loop *agentloop.Loop, model string) *Planner {
	return &Planner{loop: loop, model: model}
}

// planDocument is the JSON shape CreatePlan expects the model to return.
type planDocument struct {
	Title    string          `json:"title"`
	Goal     string          `json:"goal"`
	Language string          `json:"language"`
	Message  string          `json:"message"`
	Steps    []stepDocument  `json:"steps"`
}

type stepDocument struct {
	Description string `json:"description"`
}

// CreatePlan issues a prompt including the user message and attachment
// paths, parses the final assistant JSON into a Plan, and emits a
// plan{CREATED} event (spec §4.6).
func (p *Planner) CreatePlan(ctx context.Context, mem *memory.Memory, userMessage string, attachmentPaths []string, sink agentloop.EventSink) (*models.Plan, error) {
	query := buildCreatePrompt(userMessage, attachmentPaths)
	content, err := p.loop.Run(ctx, mem, p.model, query, "json_object", "", withoutMessages(sink))
	if err != nil {
		return nil, fmt.Errorf("planner: create plan: %w", err)
	}

	var doc planDocument
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &doc); err != nil {
		return nil, fmt.Errorf("planner: parse plan JSON: %w", err)
	}

	plan := &models.Plan{
		ID:       newPlanID(),
		Title:    doc.Title,
		Goal:     doc.Goal,
		Language: doc.Language,
		Message:  doc.Message,
		Status:   models.PlanCreated,
	}
	for _, s := range doc.Steps {
		plan.Steps = append(plan.Steps, &models.Step{ID: newStepID(), Description: s.Description, Status: models.StepPending})
	}

	if plan.Title != "" {
		if err := sink(ctx, models.Event{Type: models.EventTitle, Title: &models.TitlePayload{Title: plan.Title}}); err != nil {
			return nil, err
		}
	}
	if err := sink(ctx, models.Event{Type: models.EventPlan, Plan: &models.PlanPayload{Plan: plan}}); err != nil {
		return nil, err
	}
	return plan, nil
}

// planPatch is the JSON shape UpdatePlan expects: new steps replacing
// everything from the first pending index onward.
type planPatch struct {
	Steps []stepDocument `json:"steps"`
}

// UpdatePlan issues a prompt with the completed step and the current plan,
// parses a Plan patch, and replaces plan.Steps from the first pending
// index onward -- preserving the completed prefix exactly (Invariant 3)
// -- then emits plan{UPDATED}.
func (p *Planner) UpdatePlan(ctx context.Context, mem *memory.Memory, plan *models.Plan, justFinishedStep *models.Step, sink agentloop.EventSink) (*models.Plan, error) {
	query, err := buildUpdatePrompt(plan, justFinishedStep)
	if err != nil {
		return nil, err
	}

	content, err := p.loop.Run(ctx, mem, p.model, query, "json_object", "", withoutMessages(sink))
	if err != nil {
		return nil, fmt.Errorf("planner: update plan: %w", err)
	}

	var patch planPatch
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &patch); err != nil {
		return nil, fmt.Errorf("planner: parse plan patch JSON: %w", err)
	}

	boundary := plan.FirstPendingIndex()
	newSteps := make([]*models.Step, 0, boundary+len(patch.Steps))
	newSteps = append(newSteps, plan.Steps[:boundary]...)
	for _, s := range patch.Steps {
		newSteps = append(newSteps, &models.Step{ID: newStepID(), Description: s.Description, Status: models.StepPending})
	}
	plan.Steps = newSteps
	plan.Status = models.PlanUpdated

	if err := sink(ctx, models.Event{Type: models.EventPlan, Plan: &models.PlanPayload{Plan: plan}}); err != nil {
		return nil, err
	}
	return plan, nil
}

// withoutMessages drops the raw final message event loop.Run emits; the
// planner's JSON reply reaches the sink only as title/plan events.
func withoutMessages(sink agentloop.EventSink) agentloop.EventSink {
	return func(ctx context.Context, ev models.Event) error {
		if ev.Type == models.EventMessage {
			return nil
		}
		return sink(ctx, ev)
	}
}

func buildCreatePrompt(userMessage string, attachmentPaths []string) string {
	var b strings.Builder
	b.WriteString("User request:\n")
	b.WriteString(userMessage)
	if len(attachmentPaths) > 0 {
		b.WriteString("\n\nAttachments:\n")
		for _, path := range attachmentPaths {
			b.WriteString("- ")
			b.WriteString(path)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\nRespond with a JSON object: {\"title\", \"goal\", \"language\", \"message\", \"steps\": [{\"description\"}]}.")
	return b.String()
}

func buildUpdatePrompt(plan *models.Plan, justFinishedStep *models.Step) (string, error) {
	encodedPlan, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("planner: marshal plan: %w", err)
	}
	var b strings.Builder
	b.WriteString("The following step just finished:\n")
	if justFinishedStep != nil {
		b.WriteString(justFinishedStep.Description)
		b.WriteString("\nResult: ")
		b.WriteString(justFinishedStep.Result)
	}
	b.WriteString("\n\nCurrent plan:\n")
	b.Write(encodedPlan)
	b.WriteString("\n\nRespond with a JSON object {\"steps\": [{\"description\"}]} containing only the steps that should replace everything from the first still-pending step onward. Do not repeat completed steps.")
	return b.String(), nil
}

func newPlanID() string { return "plan-" + uuid.NewString() }

func newStepID() string { return "step-" + uuid.NewString() }
