package sandbox

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

const (
	shellExecCommand = "shell_exec_command"
	shellReadOutput  = "shell_read_output"
	shellWait        = "shell_wait"
	shellWriteInput  = "shell_write_input"
	shellKill        = "shell_kill"
)

// ShellToolbox exposes one sandbox Session's shell capability surface
// (spec §4.2) as a Toolbox. A Task constructs one per sandbox session, so
// unlike the wire API, no session id travels in the tool arguments.
type ShellToolbox struct {
	session *Session
}

// NewShellToolbox binds a shell toolbox to a single sandbox session.
func NewShellToolbox(session *Session) *ShellToolbox {
	return &ShellToolbox{session: session}
}

func (ShellToolbox) Name() string { return "shell" }

func (ShellToolbox) Schemas() []toolsys.Schema {
	return []toolsys.Schema{
		{
			Name:        shellExecCommand,
			Description: "Run a shell command in the sandbox.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"exec_dir":{"type":"string"},"command":{"type":"string"}},"required":["command"]}`),
		},
		{
			Name:        shellReadOutput,
			Description: "Read accumulated output from the running shell command.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"include_console":{"type":"boolean"}}}`),
		},
		{
			Name:        shellWait,
			Description: "Wait for the running shell command to finish, up to timeout_s.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"timeout_s":{"type":"integer"}}}`),
		},
		{
			Name:        shellWriteInput,
			Description: "Write text to the running shell command's stdin.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"},"press_enter":{"type":"boolean"}},"required":["text"]}`),
		},
		{
			Name:        shellKill,
			Description: "Kill the running shell command.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}
}

func (ShellToolbox) Has(functionName string) bool {
	switch functionName {
	case shellExecCommand, shellReadOutput, shellWait, shellWriteInput, shellKill:
		return true
	default:
		return false
	}
}

func (t *ShellToolbox) Invoke(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	switch functionName {
	case shellExecCommand:
		var a struct {
			ExecDir string `json:"exec_dir"`
			Command string `json:"command"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return t.session.Client.ExecCommand(ctx, a.ExecDir, a.Command)
	case shellReadOutput:
		var a struct {
			IncludeConsole bool `json:"include_console"`
		}
		_ = json.Unmarshal(args, &a)
		return t.session.Client.ReadOutput(ctx, a.IncludeConsole)
	case shellWait:
		var a struct {
			TimeoutS int `json:"timeout_s"`
		}
		_ = json.Unmarshal(args, &a)
		if a.TimeoutS <= 0 {
			a.TimeoutS = 60
		}
		return t.session.Client.Wait(ctx, a.TimeoutS)
	case shellWriteInput:
		var a struct {
			Text       string `json:"text"`
			PressEnter bool   `json:"press_enter"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return t.session.Client.WriteInput(ctx, a.Text, a.PressEnter)
	case shellKill:
		return t.session.Client.Kill(ctx)
	default:
		return &models.ToolResult{Success: false, Message: "unknown function: " + functionName}, nil
	}
}

func invalidArgs(err error) (*models.ToolResult, error) {
	return &models.ToolResult{Success: false, Message: "invalid arguments: " + err.Error()}, nil
}
