package react

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/agentexec/internal/agentloop"
	"github.com/haasonsaas/agentexec/internal/llm"
	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

type scriptedProvider struct {
	replies   []string
	toolCalls [][]llm.ToolCall
	calls     int
}

func (p *scriptedProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := p.calls
	p.calls++
	var tc []llm.ToolCall
	if i < len(p.toolCalls) {
		tc = p.toolCalls[i]
	}
	content := ""
	if i < len(p.replies) {
		content = p.replies[i]
	}
	return &llm.CompletionResponse{Content: content, ToolCalls: tc}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func collectSink() (agentloop.EventSink, *[]models.Event) {
	var events []models.Event
	return func(ctx context.Context, ev models.Event) error {
		events = append(events, ev)
		return nil
	}, &events
}

func TestExecuteStepParsesSuccessPatch(t *testing.T) {
	provider := &scriptedProvider{replies: []string{`{"success":true,"result":"done it"}`}}
	loop := agentloop.NewLoop(provider, toolsys.NewRegistry(), agentloop.LoopConfig{MaxIterations: 3})
	r := New(loop, "test-model")
	mem := memory.New("system prompt")
	sink, events := collectSink()

	step := &models.Step{ID: "s1", Description: "do a thing"}
	if err := r.ExecuteStep(context.Background(), mem, step, "do a thing", sink); err != nil {
		t.Fatalf("execute step: %v", err)
	}
	if step.Status != models.StepCompleted || !step.Success || step.Result != "done it" {
		t.Fatalf("unexpected step state: %+v", step)
	}

	var sawStepRunning, sawStepCompleted, sawMessage bool
	for _, ev := range *events {
		switch {
		case ev.Type == models.EventStep && ev.Step.Status == models.StepRunning:
			sawStepRunning = true
		case ev.Type == models.EventStep && ev.Step.Status == models.StepCompleted:
			sawStepCompleted = true
		case ev.Type == models.EventMessage:
			sawMessage = true
		}
	}
	if !sawStepRunning || !sawStepCompleted || !sawMessage {
		t.Fatalf("expected running, completed, and message events, got %+v", *events)
	}
}

func TestExecuteStepMarksFailedOnInvalidPatch(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"not json"}}
	loop := agentloop.NewLoop(provider, toolsys.NewRegistry(), agentloop.LoopConfig{MaxIterations: 3})
	r := New(loop, "test-model")
	mem := memory.New("system prompt")
	sink, _ := collectSink()

	step := &models.Step{ID: "s1", Description: "do a thing"}
	err := r.ExecuteStep(context.Background(), mem, step, "do a thing", sink)
	if err == nil {
		t.Fatalf("expected an error for an unparseable step patch")
	}
	if step.Status != models.StepFailed {
		t.Fatalf("expected step marked FAILED, got %s", step.Status)
	}
}

func TestExecuteStepAskUserSuspendsWithAwaitingUser(t *testing.T) {
	provider := &scriptedProvider{
		toolCalls: [][]llm.ToolCall{{{ID: "c1", Name: "message_ask_user", Arguments: []byte(`{"text":"which file?"}`)}}},
	}
	loop := agentloop.NewLoop(provider, toolsys.NewRegistry(), agentloop.LoopConfig{MaxIterations: 3})
	r := New(loop, "test-model")
	mem := memory.New("system prompt")
	sink, events := collectSink()

	step := &models.Step{ID: "s1", Description: "do a thing"}
	err := r.ExecuteStep(context.Background(), mem, step, "do a thing", sink)
	if !errors.Is(err, ErrAwaitingUser) {
		t.Fatalf("expected ErrAwaitingUser, got %v", err)
	}

	var sawWait bool
	for _, ev := range *events {
		if ev.Type == models.EventWait {
			sawWait = true
		}
	}
	if !sawWait {
		t.Fatalf("expected a wait event, got %+v", *events)
	}
}

func TestSummarizeEmitsMessageEvent(t *testing.T) {
	provider := &scriptedProvider{replies: []string{`{"message":"summary of the work"}`}}
	loop := agentloop.NewLoop(provider, toolsys.NewRegistry(), agentloop.LoopConfig{MaxIterations: 3})
	r := New(loop, "test-model")
	mem := memory.New("system prompt")
	sink, events := collectSink()

	if err := r.Summarize(context.Background(), mem, sink); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(*events) != 1 || (*events)[0].Message.Message != "summary of the work" {
		t.Fatalf("unexpected events: %+v", *events)
	}
}
