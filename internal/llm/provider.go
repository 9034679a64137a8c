// Package llm defines the model-backend abstraction the agent loop drives
// once per iteration (spec §4.5), and the Anthropic/OpenAI/Bedrock adapters
// that implement it.
//
// Grounded on internal/agent/provider_types.go's LLMProvider interface and
// internal/agent/providers/{anthropic,openai,bedrock}.go, collapsed from
// the teacher's streaming chunk-channel shape to a single blocking call per
// completion: the agent loop here calls the provider once per iteration and
// needs the whole message back before deciding what to do next, not a
// token-by-token stream.
package llm

import (
	"context"
	"encoding/json"
)

// Provider is an LLM backend capable of producing one completion from a
// conversation, optionally offering tools for the model to call.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Complete sends req and returns the model's full response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name identifies the provider for logging and metrics.
	Name() string
}

// Message is one entry in the conversation sent to a provider.
type Message struct {
	Role         string     `json:"role"`
	Content      string     `json:"content,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID   string     `json:"tool_call_id,omitempty"`
	FunctionName string     `json:"function_name,omitempty"`
}

// ToolCall is one tool invocation the assistant requested.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolSchema describes one callable tool in the shape providers expect.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// CompletionRequest holds everything a provider needs to produce one
// completion (spec §4.5: "(messages, tools, response_format, tool_choice)").
type CompletionRequest struct {
	Model          string
	System         string
	Messages       []Message
	Tools          []ToolSchema
	MaxTokens      int
	ResponseFormat string // "", "json_object" -- provider-specific interpretation
	ToolChoice     string // "", "auto", "none", "required"
}

// CompletionResponse is a provider's full reply to one CompletionRequest.
type CompletionResponse struct {
	Content      string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}
