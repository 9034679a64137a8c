// Package a2a implements the agent-to-agent (A2A) remote tool toolbox
// (spec §4.3). Unlike the MCP toolbox it has no teacher counterpart; its
// HTTP client conventions (context-scoped requests, a shared *http.Client,
// JSON decode-or-error) follow the same shape as this module's MCP HTTP
// transport.
package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// ServerConfig names one remote agent by its base URL; the agent card is
// fetched from "<BaseURL>/.well-known/agent-card.json".
type ServerConfig struct {
	ID      string `yaml:"id" json:"id"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// Config is the a2a toolbox's initialization configuration.
type Config struct {
	Enabled bool           `yaml:"enabled"`
	Servers []ServerConfig `yaml:"servers"`
}

// AgentCard is a remote agent's self-description, fetched once at
// initialize time and cached for the life of the toolbox.
type AgentCard struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Version     string `json:"version,omitempty"`
}

const (
	listAgentsFunction = "a2a_get_remote_agent_cards"
	callAgentFunction  = "a2a_call_remote_agent"
)

// Toolbox exposes the configured remote agents as two callables:
// listing known agent cards, and forwarding a query to one of them over
// JSON-RPC message/send.
type Toolbox struct {
	client *http.Client

	mu    sync.RWMutex
	cards map[string]AgentCard
	urls  map[string]string
}

// NewToolbox creates an empty toolbox; call Initialize to fetch agent
// cards for the configured servers.
func NewToolbox() *Toolbox {
	return &Toolbox{
		client: &http.Client{Timeout: 30 * time.Second},
		cards:  make(map[string]AgentCard),
		urls:   make(map[string]string),
	}
}

// Initialize fetches each configured server's agent card. A server whose
// card cannot be fetched is skipped, not fatal: other servers should
// still be usable.
func (t *Toolbox) Initialize(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	for _, srv := range cfg.Servers {
		card, err := t.fetchCard(ctx, srv.BaseURL)
		if err != nil {
			continue
		}
		t.mu.Lock()
		t.cards[srv.ID] = card
		t.urls[srv.ID] = srv.BaseURL
		t.mu.Unlock()
	}
	return nil
}

func (t *Toolbox) fetchCard(ctx context.Context, baseURL string) (AgentCard, error) {
	url := strings.TrimRight(baseURL, "/") + "/.well-known/agent-card.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return AgentCard{}, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return AgentCard{}, fmt.Errorf("a2a: fetch agent card %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return AgentCard{}, fmt.Errorf("a2a: fetch agent card %s: status %d", url, resp.StatusCode)
	}
	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return AgentCard{}, fmt.Errorf("a2a: decode agent card %s: %w", url, err)
	}
	return card, nil
}

func (Toolbox) Name() string { return "a2a" }

func (t *Toolbox) Schemas() []toolsys.Schema {
	return []toolsys.Schema{
		{
			Name:        listAgentsFunction,
			Description: "List the remote agents available to call, with their descriptions.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
		{
			Name:        callAgentFunction,
			Description: "Send a query to a remote agent by id and return its reply.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"query":{"type":"string"}},"required":["id","query"]}`),
		},
	}
}

func (Toolbox) Has(functionName string) bool {
	return functionName == listAgentsFunction || functionName == callAgentFunction
}

type callAgentArgs struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

func (t *Toolbox) Invoke(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	switch functionName {
	case listAgentsFunction:
		return t.listCards(), nil
	case callAgentFunction:
		var a callAgentArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return &models.ToolResult{Success: false, Message: "invalid arguments: " + err.Error()}, nil
		}
		return t.callAgent(ctx, a.ID, a.Query)
	default:
		return &models.ToolResult{Success: false, Message: "unknown function: " + functionName}, nil
	}
}

func (t *Toolbox) listCards() *models.ToolResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cards := make(map[string]AgentCard, len(t.cards))
	for id, c := range t.cards {
		cards[id] = c
	}
	return &models.ToolResult{Success: true, Message: fmt.Sprintf("%d remote agents known", len(cards)), Data: cards}
}

// jsonrpcSend is the message/send envelope sent to a remote agent.
type jsonrpcSend struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      string       `json:"id"`
	Method  string       `json:"method"`
	Params  sendMsgParam `json:"params"`
}

type sendMsgParam struct {
	Message remoteMessage `json:"message"`
}

type remoteMessage struct {
	MessageID string       `json:"messageId"`
	Role      string       `json:"role"`
	Parts     []remotePart `json:"parts"`
}

type remotePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type jsonrpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (t *Toolbox) callAgent(ctx context.Context, id, query string) (*models.ToolResult, error) {
	t.mu.RLock()
	baseURL, ok := t.urls[id]
	t.mu.RUnlock()
	if !ok {
		return &models.ToolResult{Success: false, Message: "unknown remote agent: " + id}, nil
	}

	reqBody := jsonrpcSend{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "message/send",
		Params: sendMsgParam{Message: remoteMessage{
			MessageID: uuid.NewString(),
			Role:      "user",
			Parts:     []remotePart{{Type: "text", Text: query}},
		}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return &models.ToolResult{Success: false, Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	var reply jsonrpcReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return &models.ToolResult{Success: false, Message: "decode reply: " + err.Error()}, nil
	}
	if reply.Error != nil {
		return &models.ToolResult{Success: false, Message: reply.Error.Message}, nil
	}
	return &models.ToolResult{Success: true, Message: string(reply.Result), Data: reply.Result}, nil
}
