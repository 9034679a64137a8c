package mcp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"unicode"

	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

const maxToolNameLen = 64

// Toolbox bridges every tool exposed by every connected MCP server into
// one toolsys.Toolbox, each tool advertised under a collision-safe
// "mcp_<server>_<tool>" name so two servers can expose a same-named tool
// without aliasing.
type Toolbox struct {
	manager *Manager

	mu       sync.RWMutex
	resolved map[string]resolvedTool // safe name -> (server, mcp tool name)
}

type resolvedTool struct {
	serverID string
	toolName string
}

// NewToolbox wraps an already-configured Manager.
func NewToolbox(manager *Manager) *Toolbox {
	return &Toolbox{manager: manager, resolved: make(map[string]resolvedTool)}
}

func (Toolbox) Name() string { return "mcp" }

// Schemas rebuilds the name map from the manager's current client set and
// returns a schema per bridged tool. Called on every planner/ReAct
// iteration, since MCP servers can be (re)connected mid-task.
func (t *Toolbox) Schemas() []toolsys.Schema {
	clients := t.manager.Clients()

	used := make(map[string]struct{})
	resolved := make(map[string]resolvedTool)
	var schemas []toolsys.Schema

	for serverID, client := range clients {
		for _, tool := range client.Tools() {
			safe := safeToolName(serverID, tool.Name, used)
			used[safe] = struct{}{}
			resolved[safe] = resolvedTool{serverID: serverID, toolName: tool.Name}

			params := tool.InputSchema
			if len(params) == 0 {
				params = json.RawMessage(`{"type":"object"}`)
			}
			desc := strings.TrimSpace(tool.Description)
			if desc == "" {
				desc = "MCP tool " + serverID + "." + tool.Name
			} else {
				desc = "MCP tool " + serverID + "." + tool.Name + ": " + desc
			}
			schemas = append(schemas, toolsys.Schema{Name: safe, Description: desc, Parameters: params})
		}
	}

	t.mu.Lock()
	t.resolved = resolved
	t.mu.Unlock()
	return schemas
}

func (t *Toolbox) Has(functionName string) bool {
	if strings.HasPrefix(functionName, "mcp_") {
		return true
	}
	t.mu.RLock()
	_, ok := t.resolved[functionName]
	t.mu.RUnlock()
	return ok
}

func (t *Toolbox) Invoke(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	t.mu.RLock()
	rt, ok := t.resolved[functionName]
	t.mu.RUnlock()
	if !ok {
		// Schemas() wasn't called since the last (re)connect; rebuild once.
		t.Schemas()
		t.mu.RLock()
		rt, ok = t.resolved[functionName]
		t.mu.RUnlock()
	}
	if !ok {
		return &models.ToolResult{Success: false, Message: "unknown mcp tool: " + functionName}, nil
	}

	clients := t.manager.Clients()
	client, ok := clients[rt.serverID]
	if !ok {
		return &models.ToolResult{Success: false, Message: "mcp server not connected: " + rt.serverID}, nil
	}

	result, err := client.CallTool(ctx, rt.toolName, args)
	if err != nil {
		return &models.ToolResult{Success: false, Message: err.Error()}, nil
	}
	return toToolResult(result), nil
}

func toToolResult(r *ToolCallResult) *models.ToolResult {
	var parts []string
	for _, c := range r.Content {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return &models.ToolResult{
		Success: !r.IsError,
		Message: strings.Join(parts, "\n"),
		Data:    r.Content,
	}
}

func safeToolName(serverID, toolName string, used map[string]struct{}) string {
	base := "mcp_" + sanitizeToolPart(serverID) + "_" + sanitizeToolPart(toolName)
	name := base
	if len(name) > maxToolNameLen {
		name = truncateWithHash(base, serverID, toolName)
	}
	if _, collides := used[name]; collides {
		name = dedupeWithHash(base, serverID, toolName)
	}
	return name
}

func sanitizeToolPart(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func toolNameHash(serverID, toolName string) string {
	sum := sha1.Sum([]byte(serverID + "\x00" + toolName))
	return hex.EncodeToString(sum[:])[:8]
}

func truncateWithHash(base, serverID, toolName string) string {
	suffix := "_" + toolNameHash(serverID, toolName)
	if maxToolNameLen <= len(suffix) {
		return suffix[len(suffix)-maxToolNameLen:]
	}
	trimLen := maxToolNameLen - len(suffix)
	if trimLen > len(base) {
		trimLen = len(base)
	}
	return base[:trimLen] + suffix
}

func dedupeWithHash(base, serverID, toolName string) string {
	name := truncateWithHash(base, serverID, toolName)
	if len(name) <= maxToolNameLen {
		return name
	}
	return name[:maxToolNameLen]
}
