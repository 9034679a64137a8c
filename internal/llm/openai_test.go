package llm

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestConvertOpenAIMessagesIncludesLeadingSystemMessage(t *testing.T) {
	out := convertOpenAIMessages([]Message{{Role: "user", Content: "hi"}}, "be terse")
	if len(out) != 2 || out[0].Role != openai.ChatMessageRoleSystem || out[0].Content != "be terse" {
		t.Fatalf("expected a leading system message, got %+v", out)
	}
}

func TestConvertOpenAIMessagesCarriesToolCallsAndResults(t *testing.T) {
	out := convertOpenAIMessages([]Message{
		{Role: "assistant", Content: "", ToolCalls: []ToolCall{{ID: "c1", Name: "search_web", Arguments: json.RawMessage(`{"query":"go"}`)}}},
		{Role: "tool", Content: "result text", ToolCallID: "c1"},
	}, "")
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
	if len(out[0].ToolCalls) != 1 || out[0].ToolCalls[0].Function.Name != "search_web" {
		t.Fatalf("expected tool call carried on assistant message, got %+v", out[0])
	}
	if out[1].Role != openai.ChatMessageRoleTool || out[1].ToolCallID != "c1" {
		t.Fatalf("expected a tool-role message keyed by call id, got %+v", out[1])
	}
}

func TestConvertOpenAIToolsFallsBackOnInvalidSchema(t *testing.T) {
	out := convertOpenAITools([]ToolSchema{{Name: "fn", Description: "d", Parameters: json.RawMessage(`not json`)}})
	if len(out) != 1 || out[0].Function.Name != "fn" {
		t.Fatalf("unexpected tool conversion: %+v", out)
	}
	schema, ok := out[0].Function.Parameters.(map[string]any)
	if !ok || schema["type"] != "object" {
		t.Fatalf("expected a fallback object schema, got %+v", out[0].Function.Parameters)
	}
}
