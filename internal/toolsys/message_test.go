package toolsys

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMessageToolboxInvokeEchoesText(t *testing.T) {
	tb := NewMessageToolbox()
	args, _ := json.Marshal(askUserArgs{Text: "what's your name?"})
	result, err := tb.Invoke(context.Background(), AskUserFunction, args)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.Success || result.Data != "what's your name?" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestMessageToolboxInvokeUnknownFunction(t *testing.T) {
	tb := NewMessageToolbox()
	result, err := tb.Invoke(context.Background(), "other_fn", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for an unknown function name")
	}
}

func TestMessageToolboxInvokeRejectsInvalidArgs(t *testing.T) {
	tb := NewMessageToolbox()
	result, err := tb.Invoke(context.Background(), AskUserFunction, json.RawMessage(`not json`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for malformed arguments")
	}
}

func TestMessageToolboxHasAndSchemas(t *testing.T) {
	tb := NewMessageToolbox()
	if !tb.Has(AskUserFunction) || tb.Has("unknown") {
		t.Fatalf("unexpected Has result")
	}
	schemas := tb.Schemas()
	if len(schemas) != 1 || schemas[0].Name != AskUserFunction {
		t.Fatalf("unexpected schemas: %+v", schemas)
	}
}
