package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestToolboxInitializeFetchesAgentCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/agent-card.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(AgentCard{Name: "helper", Description: "does helpful things"})
	}))
	defer srv.Close()

	tb := NewToolbox()
	if err := tb.Initialize(context.Background(), Config{Enabled: true, Servers: []ServerConfig{{ID: "helper", BaseURL: srv.URL}}}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	result := tb.listCards()
	if !result.Success {
		t.Fatalf("expected listCards success, got %+v", result)
	}
	cards, ok := result.Data.(map[string]AgentCard)
	if !ok || cards["helper"].Name != "helper" {
		t.Fatalf("expected the fetched card registered under its id, got %+v", result.Data)
	}
}

func TestToolboxInitializeSkipsUnreachableServers(t *testing.T) {
	tb := NewToolbox()
	err := tb.Initialize(context.Background(), Config{Enabled: true, Servers: []ServerConfig{{ID: "ghost", BaseURL: "http://127.0.0.1:0"}}})
	if err != nil {
		t.Fatalf("expected unreachable servers to be skipped, not erred: %v", err)
	}
	if len(tb.cards) != 0 {
		t.Fatalf("expected no cards registered for an unreachable server")
	}
}

func TestToolboxInitializeNoopWhenDisabled(t *testing.T) {
	tb := NewToolbox()
	if err := tb.Initialize(context.Background(), Config{Enabled: false, Servers: []ServerConfig{{ID: "x", BaseURL: "http://example.com"}}}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(tb.cards) != 0 {
		t.Fatalf("expected no fetch when disabled")
	}
}

func TestToolboxInvokeCallAgentSendsQueryAndParsesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcSend
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Params.Message.Parts[0].Text != "what is 2+2" {
			t.Fatalf("unexpected forwarded query: %+v", req.Params.Message.Parts)
		}
		json.NewEncoder(w).Encode(jsonrpcReply{Result: json.RawMessage(`"4"`)})
	}))
	defer srv.Close()

	tb := NewToolbox()
	tb.urls["math"] = srv.URL

	args, _ := json.Marshal(callAgentArgs{ID: "math", Query: "what is 2+2"})
	result, err := tb.Invoke(context.Background(), callAgentFunction, args)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.Success || result.Message != `"4"` {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestToolboxInvokeCallAgentUnknownIDReturnsFailedResult(t *testing.T) {
	tb := NewToolbox()
	args, _ := json.Marshal(callAgentArgs{ID: "ghost", Query: "hi"})
	result, err := tb.Invoke(context.Background(), callAgentFunction, args)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatalf("expected a failed result for an unknown remote agent id")
	}
}

func TestToolboxInvokeRejectsInvalidCallAgentArgs(t *testing.T) {
	tb := NewToolbox()
	result, err := tb.Invoke(context.Background(), callAgentFunction, json.RawMessage(`not json`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatalf("expected a failed result for malformed arguments")
	}
}

func TestToolboxInvokeUnknownFunctionReturnsFailedResult(t *testing.T) {
	tb := NewToolbox()
	result, err := tb.Invoke(context.Background(), "nonexistent", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Success {
		t.Fatalf("expected a failed result for an unknown function")
	}
}

func TestToolboxHasRecognizesOnlyItsTwoFunctions(t *testing.T) {
	tb := NewToolbox()
	if !tb.Has(listAgentsFunction) || !tb.Has(callAgentFunction) {
		t.Fatalf("expected both a2a functions recognized")
	}
	if tb.Has("something_else") {
		t.Fatalf("expected an unrelated function name rejected")
	}
}

func TestToolboxSchemasAdvertisesBothFunctions(t *testing.T) {
	tb := NewToolbox()
	schemas := tb.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(schemas))
	}
}
