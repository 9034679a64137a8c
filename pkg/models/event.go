package models

import "time"

// EventType discriminates the closed set of event payloads that can be
// written to a session's output stream. At most one payload field is
// non-nil for a given Type (wait and done carry none); deserialization is
// total over this set.
type EventType string

const (
	EventPlan    EventType = "plan"
	EventTitle   EventType = "title"
	EventStep    EventType = "step"
	EventMessage EventType = "message"
	EventTool    EventType = "tool"
	EventWait    EventType = "wait"
	EventError   EventType = "error"
	EventDone    EventType = "done"
)

// Event is the tagged union written to and read from a session's output
// stream. ID is the entry id the stream returns from Put, and CreatedAt
// is stamped by the writer just before that Put; producers set neither.
type Event struct {
	ID        string    `json:"event_id"`
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`

	Plan    *PlanPayload    `json:"plan,omitempty"`
	Title   *TitlePayload   `json:"title,omitempty"`
	Step    *StepPayload    `json:"step,omitempty"`
	Message *MessagePayload `json:"message,omitempty"`
	Tool    *ToolPayload    `json:"tool,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// PlanStatus tracks the lifecycle of a Plan as reflected in plan events.
type PlanStatus string

const (
	PlanCreated   PlanStatus = "CREATED"
	PlanUpdated   PlanStatus = "UPDATED"
	PlanCompleted PlanStatus = "COMPLETED"
)

// PlanPayload carries a full plan snapshot for plan-typed events.
type PlanPayload struct {
	Plan *Plan `json:"plan"`
}

// TitlePayload carries a session title update.
type TitlePayload struct {
	Title string `json:"title"`
}

// StepStatus tracks the lifecycle of a single plan Step.
type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepRunning   StepStatus = "RUNNING"
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
)

// Step is one unit of work in a Plan.
type Step struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Status      StepStatus  `json:"status"`
	Result      string      `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	Success     bool        `json:"success"`
	Attachments []File      `json:"attachments,omitempty"`
}

// StepPayload carries a step snapshot for step-typed events.
type StepPayload struct {
	Step *Step `json:"step"`
}

// Plan is the ordered, mutable list of Steps a Flow drives to completion.
// At most one Step is RUNNING at a time.
type Plan struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Goal     string     `json:"goal"`
	Language string     `json:"language"`
	Message  string     `json:"message"`
	Status   PlanStatus `json:"status"`
	Steps    []*Step    `json:"steps"`
}

// NextStep returns the first non-terminal step, or nil if every step is
// COMPLETED or FAILED.
func (p *Plan) NextStep() *Step {
	if p == nil {
		return nil
	}
	for _, s := range p.Steps {
		if s.Status != StepCompleted && s.Status != StepFailed {
			return s
		}
	}
	return nil
}

// FirstPendingIndex returns the index of the first step that is still
// PENDING (not RUNNING, COMPLETED, or FAILED), or len(Steps) if none.
// This is the boundary UpdatePlan must preserve exactly below it.
func (p *Plan) FirstPendingIndex() int {
	if p == nil {
		return 0
	}
	for i, s := range p.Steps {
		if s.Status == StepPending {
			return i
		}
	}
	return len(p.Steps)
}

// MessageRole is the speaker of a message event.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessagePayload carries a chat-visible message for message-typed events.
type MessagePayload struct {
	Role        MessageRole `json:"role"`
	Message     string      `json:"message"`
	Attachments []File      `json:"attachments,omitempty"`
}

// ToolName enumerates the toolboxes a tool event may belong to.
type ToolName string

const (
	ToolBrowser ToolName = "browser"
	ToolShell   ToolName = "shell"
	ToolFile    ToolName = "file"
	ToolSearch  ToolName = "search"
	ToolMCP     ToolName = "mcp"
	ToolA2A     ToolName = "a2a"
	ToolMessage ToolName = "message"
)

// ToolCallStatus tracks a tool invocation's lifecycle within a tool event.
type ToolCallStatus string

const (
	ToolCalling ToolCallStatus = "CALLING"
	ToolCalled  ToolCallStatus = "CALLED"
)

// ToolPayload carries a tool call/result for tool-typed events.
type ToolPayload struct {
	ToolCallID     string          `json:"tool_call_id"`
	ToolName       ToolName        `json:"tool_name"`
	FunctionName   string          `json:"function_name"`
	FunctionArgs   string          `json:"function_args,omitempty"`
	FunctionResult *ToolResult     `json:"function_result,omitempty"`
	ToolContent    *ToolContent    `json:"tool_content,omitempty"`
	Status         ToolCallStatus  `json:"status"`
}

// ToolContent is a type-tagged rendering hint for a tool result (e.g. a
// browser screenshot vs. plain text), left open for toolbox-specific use.
type ToolContent struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

// ErrorPayload carries an error message for error-typed events.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ToolResult is the uniform return envelope from any tool dispatch.
type ToolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}
