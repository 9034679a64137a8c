package flow

import (
	"context"
	"testing"

	"github.com/haasonsaas/agentexec/internal/agentloop"
	"github.com/haasonsaas/agentexec/internal/llm"
	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/internal/planner"
	"github.com/haasonsaas/agentexec/internal/react"
	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

type scriptedProvider struct {
	replies []string
	calls   int
}

func (p *scriptedProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := p.calls
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	p.calls++
	return &llm.CompletionResponse{Content: p.replies[i]}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func newTestFlow(replies []string) *Flow {
	provider := &scriptedProvider{replies: replies}
	loop := agentloop.NewLoop(provider, toolsys.NewRegistry(), agentloop.LoopConfig{MaxIterations: 5})
	return New(planner.New(loop, "test-model"), react.New(loop, "test-model"), "test-model")
}

func collectSink() (agentloop.EventSink, *[]models.Event) {
	var events []models.Event
	return func(ctx context.Context, ev models.Event) error {
		events = append(events, ev)
		return nil
	}, &events
}

func TestResumePendingSessionDrivesToCompletion(t *testing.T) {
	f := newTestFlow([]string{
		`{"title":"t","goal":"g","language":"en","message":"m","steps":[{"description":"one"}]}`,
		`{"success":true,"result":"done"}`,
		`{"message":"summary"}`,
	})
	sess := &models.Session{ID: "s1", Status: models.SessionPending}
	mem := memory.New("system prompt")
	sink, events := collectSink()

	if err := f.Resume(context.Background(), sess, mem, "hello", nil, sink); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if sess.Status != models.SessionCompleted {
		t.Fatalf("expected session completed, got %s", sess.Status)
	}
	if f.State() != StateCompleted {
		t.Fatalf("expected flow state COMPLETED, got %s", f.State())
	}

	var sawDone bool
	for _, ev := range *events {
		if ev.Type == models.EventDone {
			sawDone = true
		}
	}
	if !sawDone {
		t.Fatalf("expected a done event, got %+v", *events)
	}
}

func TestResumeWaitingSessionContinuesSamePlan(t *testing.T) {
	plan := &models.Plan{ID: "plan-1", Steps: []*models.Step{
		{ID: "s1", Description: "step one", Status: models.StepRunning},
	}}
	sess := &models.Session{ID: "s2", Status: models.SessionWaiting, Plans: []*models.Plan{plan}}
	mem := memory.New("system prompt")
	mem.Append(models.ChatMessage{
		Role: models.ChatRoleAssistant,
		ToolCalls: []models.ToolCallRequest{
			{ID: "c1", FunctionName: "message_ask_user", Arguments: `{"text":"which file?"}`},
		},
	})

	f := newTestFlow([]string{
		`{"success":true,"result":"resumed and done"}`,
		`{"message":"summary"}`,
	})
	sink, _ := collectSink()

	if err := f.Resume(context.Background(), sess, mem, "use main.go", nil, sink); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if sess.Status != models.SessionCompleted {
		t.Fatalf("expected session completed after resuming, got %s", sess.Status)
	}
	if plan.Steps[0].Status != models.StepCompleted {
		t.Fatalf("expected the resumed step completed, got %s", plan.Steps[0].Status)
	}

	var sawBridge bool
	for _, m := range mem.Messages() {
		if m.Role == models.ChatRoleTool && m.ToolCallID == "c1" {
			sawBridge = true
			if m.Content != `{"message":"use main.go"}` {
				t.Fatalf("bridged tool content = %q, want serialized message", m.Content)
			}
		}
	}
	if !sawBridge {
		t.Fatalf("expected a bridged tool-result message for call c1")
	}
}

func TestResumeRejectsUnknownStatus(t *testing.T) {
	f := newTestFlow(nil)
	sess := &models.Session{ID: "s3", Status: models.SessionCompleted}
	mem := memory.New("system prompt")
	sink, _ := collectSink()

	if err := f.Resume(context.Background(), sess, mem, "hi", nil, sink); err == nil {
		t.Fatalf("expected an error resuming a COMPLETED session")
	}
}
