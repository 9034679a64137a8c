// Package agentloop implements the LLM-tool iteration at the center of one
// agent turn (spec §4.5, C7): call the model, dispatch at most one tool
// call per iteration, feed the result back, repeat until the model answers
// in plain text or the iteration budget runs out.
//
// Reworked from internal/agent/loop.go's AgenticLoop.Run: same phase shape
// (call model -> dispatch tools -> continue or complete) and the same
// LoopConfig knobs (MaxIterations, retries, timeouts), collapsed to this
// spec's serial, single-tool-call-per-iteration contract -- §4.5.b keeps
// only the first tool call even when the model proposes several, and §5
// forbids the teacher's Executor.ExecuteAll parallel fan-out within one
// agent's turn.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/agentexec/internal/llm"
	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// LoopConfig bounds one Run: how many model/tool round trips, and how the
// "please continue" empty-response retry behaves.
type LoopConfig struct {
	MaxIterations int
	MaxRetries    int
	RetryInterval time.Duration
	MaxTokens     int
	Executor      ExecutorConfig
}

// DefaultLoopConfig mirrors internal/agent/loop.go's DefaultLoopConfig
// defaults, trimmed to the fields this spec's loop actually uses.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations: 10,
		MaxRetries:    3,
		RetryInterval: time.Second,
		MaxTokens:     4096,
		Executor:      DefaultExecutorConfig(),
	}
}

func sanitizeLoopConfig(cfg LoopConfig) LoopConfig {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return cfg
}

// EventSink receives events as the loop produces them, in order. A sink
// returning an error aborts the run.
type EventSink func(ctx context.Context, ev models.Event) error

// Loop drives one agent's model-tool iteration over a Memory.
type Loop struct {
	provider llm.Provider
	registry *toolsys.Registry
	executor *singleCallExecutor
	config   LoopConfig
}

// NewLoop builds a Loop. Zero MaxIterations, MaxRetries, RetryInterval
// and MaxTokens take DefaultLoopConfig's values; in Executor, zero
// timeout and backoff fields are defaulted but a zero DefaultRetries
// stays zero (no tool retry).
func NewLoop(provider llm.Provider, registry *toolsys.Registry, config LoopConfig) *Loop {
	config = sanitizeLoopConfig(config)
	return &Loop{
		provider: provider,
		registry: registry,
		executor: newSingleCallExecutor(registry, config.Executor),
		config:   config,
	}
}

// Metrics returns the loop's tool-execution metrics snapshot.
func (l *Loop) Metrics() ExecutorMetricsSnapshot {
	return l.executor.Metrics()
}

// Run implements spec §4.5 exactly: append query to mem (auto-seeding the
// system prompt memory already holds via memory.New), then iterate the
// model/tool cycle up to config.MaxIterations times, emitting events to
// sink as it goes. It returns the final assistant message content, or an
// error if sink returns one or the iteration budget is exhausted.
func (l *Loop) Run(ctx context.Context, mem *memory.Memory, model, query, responseFormat, toolChoice string, sink EventSink) (string, error) {
	mem.Append(models.ChatMessage{Role: models.ChatRoleUser, Content: query})

	for iteration := 0; iteration < l.config.MaxIterations; iteration++ {
		resp, err := l.completeWithContinueRetry(ctx, mem, model, responseFormat, toolChoice)
		if err != nil {
			return "", fmt.Errorf("agentloop: complete: %w", err)
		}

		toolCalls := resp.ToolCalls
		if len(toolCalls) > 1 {
			toolCalls = toolCalls[:1] // §4.5.b: serial tool use only
		}

		if len(toolCalls) == 0 {
			mem.Append(models.ChatMessage{Role: models.ChatRoleAssistant, Content: resp.Content})
			if err := sink(ctx, models.Event{
				Type:    models.EventMessage,
				Message: &models.MessagePayload{Role: models.RoleAssistant, Message: resp.Content},
			}); err != nil {
				return "", err
			}
			return resp.Content, nil
		}

		call := toolCalls[0]
		mem.Append(models.ChatMessage{
			Role:    models.ChatRoleAssistant,
			Content: resp.Content,
			ToolCalls: []models.ToolCallRequest{{
				ID:           call.ID,
				FunctionName: call.Name,
				Arguments:    string(call.Arguments),
			}},
		})

		if err := sink(ctx, models.Event{
			Type: models.EventTool,
			Tool: &models.ToolPayload{
				ToolCallID:   call.ID,
				ToolName:     toolboxName(call.Name),
				FunctionName: call.Name,
				FunctionArgs: string(call.Arguments),
				Status:       models.ToolCalling,
			},
		}); err != nil {
			return "", err
		}

		result := l.executor.Execute(ctx, call.Name, tolerantArgs(call.Arguments))

		if err := sink(ctx, models.Event{
			Type: models.EventTool,
			Tool: &models.ToolPayload{
				ToolCallID:     call.ID,
				ToolName:       toolboxName(call.Name),
				FunctionName:   call.Name,
				FunctionArgs:   string(call.Arguments),
				FunctionResult: result,
				Status:         models.ToolCalled,
			},
		}); err != nil {
			return "", err
		}

		mem.Append(models.ChatMessage{
			Role:         models.ChatRoleTool,
			Content:      resultContent(result),
			ToolCallID:   call.ID,
			FunctionName: call.Name,
		})
	}

	if err := sink(ctx, models.Event{
		Type:  models.EventError,
		Error: &models.ErrorPayload{Message: "iteration limit exceeded"},
	}); err != nil {
		return "", err
	}
	return "", fmt.Errorf("agentloop: iteration limit exceeded")
}

// completeWithContinueRetry implements §4.5.a: on an empty response (no
// content, no tool calls), append a synthetic assistant+user "please
// continue" pair and retry up to config.MaxRetries times at
// config.RetryInterval, grounded on internal/agent/runtime.go's
// empty-completion handling.
func (l *Loop) completeWithContinueRetry(ctx context.Context, mem *memory.Memory, model, responseFormat, toolChoice string) (*llm.CompletionResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := l.provider.Complete(ctx, &llm.CompletionRequest{
			Model:          model,
			Messages:       toProviderMessages(mem.Messages()),
			Tools:          toProviderTools(l.registry.Schemas()),
			MaxTokens:      l.config.MaxTokens,
			ResponseFormat: responseFormat,
			ToolChoice:     toolChoice,
		})
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(resp.Content) != "" || len(resp.ToolCalls) > 0 {
			return resp, nil
		}
		if attempt >= l.config.MaxRetries {
			return resp, nil
		}
		mem.Append(models.ChatMessage{Role: models.ChatRoleAssistant, Content: ""})
		mem.Append(models.ChatMessage{Role: models.ChatRoleUser, Content: "please continue"})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.config.RetryInterval):
		}
	}
}

func toProviderMessages(messages []models.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		msg := llm.Message{
			Role:         string(m.Role),
			Content:      m.Content,
			ToolCallID:   m.ToolCallID,
			FunctionName: m.FunctionName,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.FunctionName,
				Arguments: json.RawMessage(tc.Arguments),
			})
		}
		out = append(out, msg)
	}
	return out
}

func toProviderTools(schemas []toolsys.Schema) []llm.ToolSchema {
	out := make([]llm.ToolSchema, len(schemas))
	for i, s := range schemas {
		out[i] = llm.ToolSchema{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
	}
	return out
}

// tolerantArgs repairs a few common malformations in model-generated JSON
// (a bare empty string instead of "{}", a trailing comma before a closing
// brace/bracket) before dispatch, per §4.5.d's "tolerant JSON parser".
// There is no teacher equivalent; this is new, kept deliberately small.
func tolerantArgs(raw json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if json.Valid(raw) {
		return raw
	}
	repaired := strings.ReplaceAll(trimmed, ",}", "}")
	repaired = strings.ReplaceAll(repaired, ",]", "]")
	if json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired)
	}
	return json.RawMessage("{}")
}

func resultContent(result *models.ToolResult) string {
	if result == nil {
		return ""
	}
	if result.Message != "" {
		return result.Message
	}
	if result.Data == nil {
		return ""
	}
	encoded, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Sprintf("%v", result.Data)
	}
	return string(encoded)
}

func toolboxName(functionName string) models.ToolName {
	switch {
	case strings.HasPrefix(functionName, "browser_"):
		return models.ToolBrowser
	case strings.HasPrefix(functionName, "shell_"):
		return models.ToolShell
	case strings.HasPrefix(functionName, "file_"):
		return models.ToolFile
	case strings.HasPrefix(functionName, "search_"):
		return models.ToolSearch
	case strings.HasPrefix(functionName, "mcp_"):
		return models.ToolMCP
	case strings.HasPrefix(functionName, "a2a_"):
		return models.ToolA2A
	default:
		return models.ToolMessage
	}
}
