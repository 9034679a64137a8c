package mcp

import (
	"context"
	"encoding/json"
	"testing"
)

func fakeClient(serverID string, tools ...*MCPTool) *Client {
	c := NewClient(&ServerConfig{ID: serverID, Transport: TransportStdio, Command: "true"}, nil)
	c.tools = tools
	return c
}

func TestToolboxSchemasBridgesEachServersTools(t *testing.T) {
	m := NewManager(&Config{Enabled: true}, nil)
	m.clients["alpha"] = fakeClient("alpha", &MCPTool{Name: "search", Description: "search docs"})
	m.clients["beta"] = fakeClient("beta", &MCPTool{Name: "search", Description: "search code"})

	tb := NewToolbox(m)
	schemas := tb.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("expected 2 bridged tools, got %d", len(schemas))
	}

	names := map[string]bool{}
	for _, s := range schemas {
		names[s.Name] = true
	}
	if !names["mcp_alpha_search"] || !names["mcp_beta_search"] {
		t.Fatalf("expected collision-safe names for both servers, got %+v", names)
	}
}

func TestToolboxHasRecognizesBridgedAndPrefixedNames(t *testing.T) {
	m := NewManager(&Config{Enabled: true}, nil)
	m.clients["alpha"] = fakeClient("alpha", &MCPTool{Name: "echo"})

	tb := NewToolbox(m)
	tb.Schemas()

	if !tb.Has("mcp_alpha_echo") {
		t.Fatalf("expected a resolved tool to be recognized")
	}
	if !tb.Has("mcp_unresolved_but_prefixed") {
		t.Fatalf("expected any mcp_-prefixed name to be recognized pending a Schemas() refresh")
	}
}

func TestToolboxInvokeUnknownToolReturnsFailedResult(t *testing.T) {
	m := NewManager(&Config{Enabled: true}, nil)
	tb := NewToolbox(m)
	result, err := tb.Invoke(context.Background(), "mcp_ghost_tool", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatalf("expected an unsuccessful result for an unknown tool")
	}
}

func TestSafeToolNameDedupesOnCollision(t *testing.T) {
	used := map[string]struct{}{"mcp_alpha_search": {}}
	name := safeToolName("alpha", "search", used)
	if name == "mcp_alpha_search" {
		t.Fatalf("expected a deduped name distinct from the colliding one")
	}
}

func TestSafeToolNameTruncatesOverlongNames(t *testing.T) {
	longServer := "this-is-a-very-long-server-identifier-that-exceeds-the-limit"
	longTool := "this-is-a-very-long-tool-name-that-also-exceeds-the-limit"
	name := safeToolName(longServer, longTool, map[string]struct{}{})
	if len(name) > maxToolNameLen {
		t.Fatalf("expected name truncated to %d chars, got %d: %s", maxToolNameLen, len(name), name)
	}
}
