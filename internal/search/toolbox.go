package search

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// SearchWebFunction names the toolbox's single callable.
const SearchWebFunction = "search_web"

type searchArgs struct {
	Query string `json:"query"`
}

// Toolbox adapts an Engine to toolsys.Toolbox, exposing search_web to
// the agent loop's tool registry.
type Toolbox struct {
	engine     Engine
	maxResults int
}

// NewToolbox builds a search Toolbox. maxResults bounds every call
// regardless of what the model asks for, mirroring Config.Agent's
// MaxSearchResults clamp.
func NewToolbox(engine Engine, maxResults int) *Toolbox {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Toolbox{engine: engine, maxResults: maxResults}
}

func (*Toolbox) Name() string { return "search" }

func (*Toolbox) Schemas() []toolsys.Schema {
	return []toolsys.Schema{{
		Name:        SearchWebFunction,
		Description: "Search the web and return a list of matching results.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
	}}
}

func (*Toolbox) Has(functionName string) bool {
	return functionName == SearchWebFunction
}

func (t *Toolbox) Invoke(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	if functionName != SearchWebFunction {
		return &models.ToolResult{Success: false, Message: "unknown function: " + functionName}, nil
	}
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &models.ToolResult{Success: false, Message: "invalid arguments: " + err.Error()}, nil
	}

	results, err := t.engine.Search(ctx, a.Query, t.maxResults)
	if err != nil {
		return &models.ToolResult{Success: false, Message: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Data: results}, nil
}
