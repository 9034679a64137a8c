// Package memory implements the agent-scoped conversation buffer used as
// LLM context: an ordered slice of chat messages per (session, agent)
// pair, with compaction and rollback operations.
package memory

import (
	"sync"

	"github.com/haasonsaas/agentexec/pkg/models"
)

// removedSentinel replaces bulky tool content during compaction.
const removedSentinel = "(removed)"

// compactedFunctions lists the tool function names whose results are
// dropped on Compact because they tend to dominate context with
// re-derivable page content.
var compactedFunctions = map[string]bool{
	"browser_view":     true,
	"browser_navigate": true,
}

// Memory is an ordered list of chat messages for one agent in one
// session. The zero value is ready to use; the first Append auto-inserts
// a system message if a system prompt was passed to New.
type Memory struct {
	mu           sync.Mutex
	systemPrompt string
	messages     []models.ChatMessage
}

// New creates an empty Memory that will seed itself with systemPrompt on
// first Append.
func New(systemPrompt string) *Memory {
	return &Memory{systemPrompt: systemPrompt}
}

// Restore rebuilds a Memory from a previously persisted transcript (e.g.
// loaded from a Session's stored memory). Since messages already
// includes any system message from when it was first built, a restored
// Memory never re-seeds one of its own.
func Restore(messages []models.ChatMessage) *Memory {
	out := make([]models.ChatMessage, len(messages))
	copy(out, messages)
	return &Memory{messages: out}
}

// Append adds msg to the end of the transcript. If this is the first
// message ever appended and a system prompt was configured, a system
// message is inserted ahead of it.
func (m *Memory) Append(msg models.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 && m.systemPrompt != "" {
		m.messages = append(m.messages, models.ChatMessage{
			Role:    models.ChatRoleSystem,
			Content: m.systemPrompt,
		})
	}
	m.messages = append(m.messages, msg)
}

// Messages returns a copy of the current transcript.
func (m *Memory) Messages() []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of messages currently held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Compact replaces the content of any tool message whose FunctionName is
// browser_view or browser_navigate with a removed sentinel, and sets
// ReasoningRemoved on every message (ChatMessage holds no vendor
// reasoning field to strip). It is idempotent.
func (m *Memory) Compact() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.Role == models.ChatRoleTool && compactedFunctions[msg.FunctionName] {
			msg.Content = removedSentinel
		}
		msg.ReasoningRemoved = true
	}
}

// Rollback drops the last message. It is its own inverse when applied to
// a trailing non-tool-call assistant message only in the sense that
// re-appending the same message restores the prior state; Rollback itself
// does not restore anything once called.
func (m *Memory) Rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return
	}
	m.messages = m.messages[:len(m.messages)-1]
}

// RollBackForMessage bridges a pause: if the last assistant message's
// first tool call is message_ask_user, a synthetic tool-result message
// carrying content is appended in its place (completing the pending
// tool_call so providers that require call/result pairing stay valid).
// Otherwise it behaves like Rollback.
func (m *Memory) RollBackForMessage(content string) {
	m.mu.Lock()
	last := len(m.messages) - 1
	if last < 0 {
		m.mu.Unlock()
		return
	}
	lastMsg := m.messages[last]
	bridging := lastMsg.Role == models.ChatRoleAssistant &&
		len(lastMsg.ToolCalls) > 0 &&
		lastMsg.ToolCalls[0].FunctionName == "message_ask_user"
	m.mu.Unlock()

	if !bridging {
		m.Rollback()
		return
	}

	m.Append(models.ChatMessage{
		Role:         models.ChatRoleTool,
		Content:      content,
		ToolCallID:   lastMsg.ToolCalls[0].ID,
		FunctionName: "message_ask_user",
	})
}
