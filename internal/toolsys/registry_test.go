package toolsys

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/agentexec/pkg/models"
)

type stubToolbox struct {
	name  string
	funcs map[string]*models.ToolResult
}

func (s *stubToolbox) Name() string { return s.name }

func (s *stubToolbox) Schemas() []Schema {
	var out []Schema
	for fn := range s.funcs {
		out = append(out, Schema{Name: fn, Description: fn, Parameters: json.RawMessage(`{}`)})
	}
	return out
}

func (s *stubToolbox) Has(functionName string) bool {
	_, ok := s.funcs[functionName]
	return ok
}

func (s *stubToolbox) Invoke(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	return s.funcs[functionName], nil
}

func TestRegistryResolvesFirstMatchingToolbox(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubToolbox{name: "a", funcs: map[string]*models.ToolResult{"fn": {Success: true, Message: "first"}}})
	r.Register(&stubToolbox{name: "b", funcs: map[string]*models.ToolResult{"fn": {Success: true, Message: "second"}}})

	result, err := r.Invoke(context.Background(), "fn", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Message != "first" {
		t.Fatalf("expected the first-registered toolbox to win, got %q", result.Message)
	}
}

func TestRegistryInvokeUnknownFunction(t *testing.T) {
	r := NewRegistry()
	result, err := r.Invoke(context.Background(), "missing", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for an unresolvable function")
	}
}

func TestRegistryInvokeRejectsOversizedName(t *testing.T) {
	r := NewRegistry()
	longName := strings.Repeat("x", MaxToolNameLength+1)
	result, err := r.Invoke(context.Background(), longName, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for an oversized tool name")
	}
}

func TestRegistrySchemasFlattensAllToolboxes(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubToolbox{name: "a", funcs: map[string]*models.ToolResult{"fn1": {}}})
	r.Register(&stubToolbox{name: "b", funcs: map[string]*models.ToolResult{"fn2": {}}})

	schemas := r.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(schemas))
	}
}
