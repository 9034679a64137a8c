// Package toolsys implements the uniform tool schema, dispatch, and
// toolbox grouping described in spec §4.3: a Registry of Toolboxes
// (browser, shell, file, search, message, mcp, a2a), each exposing
// named, JSON-Schema-described callables to the LLM and to the agent
// loop's single-tool-call-per-iteration dispatch path.
package toolsys

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/haasonsaas/agentexec/pkg/models"
)

// Tool parameter limits, mirroring the teacher's resource-exhaustion
// guards in internal/agent/tool_registry.go.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20
)

// Schema describes one callable tool in JSON-Schema-like terms, advertised
// to the LLM as part of a completion request's tool list.
type Schema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Toolbox groups related tool callables (e.g. all browser actions) under
// one dispatch surface, per spec §4.3.
type Toolbox interface {
	// Name identifies the toolbox, used only for tool-name resolution
	// (e.g. "browser", "mcp").
	Name() string

	// Schemas returns the JSON-Schema descriptors for every callable this
	// toolbox exposes.
	Schemas() []Schema

	// Has reports whether functionName is one of this toolbox's callables.
	Has(functionName string) bool

	// Invoke dispatches functionName with the given JSON arguments. It
	// never returns a Go error for domain failures — those come back as
	// ToolResult{Success: false, Message: ...} per spec §4.3/§7, so a
	// failing tool call can be fed straight back to the LLM.
	Invoke(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error)
}

// Registry is the uniform dispatch surface over all registered Toolboxes,
// following the thread-safe map idiom of
// internal/agent/tool_registry.go's ToolRegistry.
type Registry struct {
	mu       sync.RWMutex
	toolboxes []Toolbox
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a toolbox. A toolbox registered later does not replace
// an earlier one's functions; Has/Resolve return the first match.
func (r *Registry) Register(tb Toolbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolboxes = append(r.toolboxes, tb)
}

// Schemas returns the flat list of every registered toolbox's schemas,
// advertised to the LLM as the agent loop's tool list.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Schema
	for _, tb := range r.toolboxes {
		out = append(out, tb.Schemas()...)
	}
	return out
}

// Has reports whether any registered toolbox exposes functionName.
func (r *Registry) Has(functionName string) bool {
	_, ok := r.Resolve(functionName)
	return ok
}

// Resolve returns the toolbox owning functionName.
func (r *Registry) Resolve(functionName string) (Toolbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tb := range r.toolboxes {
		if tb.Has(functionName) {
			return tb, true
		}
	}
	return nil, false
}

// Invoke validates functionName/args against the registry's resource
// limits, resolves the owning toolbox, and dispatches.
func (r *Registry) Invoke(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	if len(functionName) > MaxToolNameLength {
		return &models.ToolResult{
			Success: false,
			Message: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength),
		}, nil
	}
	if len(args) > MaxToolParamsSize {
		return &models.ToolResult{
			Success: false,
			Message: fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize),
		}, nil
	}

	tb, ok := r.Resolve(functionName)
	if !ok {
		return &models.ToolResult{
			Success: false,
			Message: "tool not found: " + functionName,
		}, nil
	}
	result, err := tb.Invoke(ctx, functionName, args)
	if err != nil {
		return &models.ToolResult{Success: false, Message: err.Error()}, nil
	}
	return result, nil
}
