package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

var errBoom = errors.New("engine unavailable")

type fakeEngine struct {
	calledWith string
	results    []Result
	err        error
}

func (f *fakeEngine) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	f.calledWith = query
	return f.results, f.err
}

func TestToolboxInvokeDispatchesToEngine(t *testing.T) {
	engine := &fakeEngine{results: []Result{{Title: "t", URL: "u", Snippet: "s"}}}
	tb := NewToolbox(engine, 3)

	args, _ := json.Marshal(map[string]string{"query": "go modules"})
	result, err := tb.Invoke(context.Background(), SearchWebFunction, args)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if engine.calledWith != "go modules" {
		t.Fatalf("expected engine to receive the query, got %q", engine.calledWith)
	}
}

func TestToolboxInvokeUnknownFunction(t *testing.T) {
	tb := NewToolbox(&fakeEngine{}, 3)
	result, err := tb.Invoke(context.Background(), "not_a_function", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for an unknown function name")
	}
}

func TestToolboxHasAndSchemas(t *testing.T) {
	tb := NewToolbox(&fakeEngine{}, 0)
	if !tb.Has(SearchWebFunction) {
		t.Fatal("expected Has to recognize search_web")
	}
	if tb.Has("other") {
		t.Fatal("expected Has to reject unknown names")
	}
	if len(tb.Schemas()) != 1 {
		t.Fatalf("expected exactly one schema, got %d", len(tb.Schemas()))
	}
}

func TestToolboxInvokePropagatesEngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errBoom}
	tb := NewToolbox(engine, 3)
	args, _ := json.Marshal(map[string]string{"query": "x"})

	result, err := tb.Invoke(context.Background(), SearchWebFunction, args)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatal("expected Success=false when the engine errors")
	}
}
