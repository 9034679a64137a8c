package toolsys

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/agentexec/pkg/models"
)

// AskUserFunction is the name of the built-in pause signal tool (spec §4.3).
const AskUserFunction = "message_ask_user"

// askUserArgs is the argument shape the planner/ReAct prompts are told to
// emit for message_ask_user.
type askUserArgs struct {
	Text string `json:"text"`
}

// MessageToolbox implements the built-in "message" toolbox. Its single
// callable, message_ask_user, performs no server-side work: it exists so
// the agent loop can recognize a CALLING/CALLED pair and the ReAct agent
// can translate it into a conversation pause (spec §4.3, §4.6).
type MessageToolbox struct{}

// NewMessageToolbox creates the built-in message toolbox.
func NewMessageToolbox() *MessageToolbox { return &MessageToolbox{} }

func (MessageToolbox) Name() string { return "message" }

func (MessageToolbox) Schemas() []Schema {
	return []Schema{{
		Name:        AskUserFunction,
		Description: "Ask the user a question and pause until they respond.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
	}}
}

func (MessageToolbox) Has(functionName string) bool {
	return functionName == AskUserFunction
}

// Invoke always succeeds with the question text echoed back; the real
// effect (emitting a message event, then a wait event, then suspending
// the step) lives in internal/react, which special-cases this function
// name before ever calling Invoke for its result content.
func (MessageToolbox) Invoke(_ context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	if functionName != AskUserFunction {
		return &models.ToolResult{Success: false, Message: "unknown function: " + functionName}, nil
	}
	var a askUserArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &models.ToolResult{Success: false, Message: "invalid arguments: " + err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Message: "awaiting user input", Data: a.Text}, nil
}
