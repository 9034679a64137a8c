package llm

import (
	"encoding/json"
	"testing"
)

func TestConvertAnthropicMessagesSkipsSystemRole(t *testing.T) {
	out, err := convertAnthropicMessages([]Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected the system message dropped, got %d messages", len(out))
	}
}

func TestConvertAnthropicMessagesMapsToolResultToUserRole(t *testing.T) {
	out, err := convertAnthropicMessages([]Message{
		{Role: "tool", Content: "result text", ToolCallID: "c1"},
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(out) != 1 || string(out[0].Role) != "user" {
		t.Fatalf("expected a tool result mapped to a user message, got %+v", out)
	}
}

func TestConvertAnthropicMessagesRejectsInvalidToolCallArguments(t *testing.T) {
	_, err := convertAnthropicMessages([]Message{
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "c1", Name: "search_web", Arguments: json.RawMessage(`not json`)}}},
	})
	if err == nil {
		t.Fatalf("expected an error for malformed tool call arguments")
	}
}

func TestConvertAnthropicToolsRejectsInvalidSchema(t *testing.T) {
	_, err := convertAnthropicTools([]ToolSchema{{Name: "fn", Parameters: json.RawMessage(`not json`)}})
	if err == nil {
		t.Fatalf("expected an error for an unparseable tool schema")
	}
}

func TestConvertAnthropicToolsAcceptsValidSchema(t *testing.T) {
	out, err := convertAnthropicTools([]ToolSchema{
		{Name: "search_web", Description: "search", Parameters: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`)},
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(out) != 1 || out[0].OfTool == nil || out[0].OfTool.Name != "search_web" {
		t.Fatalf("unexpected tool conversion: %+v", out)
	}
}
