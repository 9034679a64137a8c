package memory

import (
	"testing"

	"github.com/haasonsaas/agentexec/pkg/models"
)

func TestMemory_FirstAppendInsertsSystemMessage(t *testing.T) {
	m := New("you are a helpful agent")
	m.Append(models.ChatMessage{Role: models.ChatRoleUser, Content: "hi"})

	msgs := m.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != models.ChatRoleSystem {
		t.Errorf("msgs[0].Role = %s, want system", msgs[0].Role)
	}
	if msgs[1].Content != "hi" {
		t.Errorf("msgs[1].Content = %q, want hi", msgs[1].Content)
	}
}

func TestMemory_NoSystemPromptConfigured(t *testing.T) {
	m := New("")
	m.Append(models.ChatMessage{Role: models.ChatRoleUser, Content: "hi"})

	msgs := m.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}
}

func TestMemory_Compact_RemovesBrowserToolContent(t *testing.T) {
	m := New("sys")
	m.Append(models.ChatMessage{Role: models.ChatRoleUser, Content: "look at this page"})
	m.Append(models.ChatMessage{
		Role:         models.ChatRoleTool,
		Content:      "huge markdown dump of the page",
		FunctionName: "browser_view",
	})
	m.Append(models.ChatMessage{
		Role:         models.ChatRoleTool,
		Content:      "huge markdown dump after nav",
		FunctionName: "browser_navigate",
	})
	m.Append(models.ChatMessage{
		Role:         models.ChatRoleTool,
		Content:      "42",
		FunctionName: "calculator",
	})

	m.Compact()

	msgs := m.Messages()
	if msgs[2].Content != removedSentinel {
		t.Errorf("browser_view content = %q, want %q", msgs[2].Content, removedSentinel)
	}
	if msgs[3].Content != removedSentinel {
		t.Errorf("browser_navigate content = %q, want %q", msgs[3].Content, removedSentinel)
	}
	if msgs[4].Content != "42" {
		t.Errorf("calculator content = %q, want unchanged", msgs[4].Content)
	}
}

func TestMemory_Rollback_DropsLastMessage(t *testing.T) {
	m := New("")
	m.Append(models.ChatMessage{Role: models.ChatRoleUser, Content: "a"})
	m.Append(models.ChatMessage{Role: models.ChatRoleAssistant, Content: "b"})

	m.Rollback()

	msgs := m.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}
	if msgs[0].Content != "a" {
		t.Errorf("remaining message = %q, want a", msgs[0].Content)
	}
}

func TestMemory_RollBackForMessage_BridgesAskUser(t *testing.T) {
	m := New("")
	m.Append(models.ChatMessage{Role: models.ChatRoleUser, Content: "plan a trip"})
	m.Append(models.ChatMessage{
		Role: models.ChatRoleAssistant,
		ToolCalls: []models.ToolCallRequest{
			{ID: "call-1", FunctionName: "message_ask_user", Arguments: `{"text":"which city?"}`},
		},
	})

	m.RollBackForMessage(`{"message":"Paris"}`)

	msgs := m.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != models.ChatRoleTool {
		t.Fatalf("last.Role = %s, want tool", last.Role)
	}
	if last.ToolCallID != "call-1" {
		t.Errorf("last.ToolCallID = %q, want call-1", last.ToolCallID)
	}
	if last.Content != `{"message":"Paris"}` {
		t.Errorf("last.Content = %q", last.Content)
	}
}

func TestMemory_RollBackForMessage_FallsBackToRollback(t *testing.T) {
	m := New("")
	m.Append(models.ChatMessage{Role: models.ChatRoleUser, Content: "a"})
	m.Append(models.ChatMessage{Role: models.ChatRoleAssistant, Content: "plain reply"})

	m.RollBackForMessage("Paris")

	msgs := m.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1 (rolled back, not bridged)", len(msgs))
	}
}
