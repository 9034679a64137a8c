package sandbox

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

const (
	fileRead    = "file_read"
	fileWrite   = "file_write"
	fileReplace = "file_replace"
	fileSearch  = "file_search"
	fileFind    = "file_find"
	fileExists  = "file_exists"
	fileDelete  = "file_delete"
)

// FileToolbox exposes one sandbox Session's file capability surface
// (spec §4.2) as a Toolbox.
type FileToolbox struct {
	session *Session
}

// NewFileToolbox binds a file toolbox to a single sandbox session.
func NewFileToolbox(session *Session) *FileToolbox {
	return &FileToolbox{session: session}
}

func (FileToolbox) Name() string { return "file" }

func (FileToolbox) Schemas() []toolsys.Schema {
	pathOnly := `{"type":"object","properties":{"path":{"type":"string"},"privileged":{"type":"boolean"}},"required":["path"]}`
	return []toolsys.Schema{
		{Name: fileRead, Description: "Read a file from the sandbox.", Parameters: json.RawMessage(pathOnly)},
		{
			Name:        fileWrite,
			Description: "Write content to a file in the sandbox.",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"path":{"type":"string"},"content":{"type":"string"},
				"append":{"type":"boolean"},"leading_newline":{"type":"boolean"},
				"trailing_newline":{"type":"boolean"},"privileged":{"type":"boolean"}
			},"required":["path","content"]}`),
		},
		{
			Name:        fileReplace,
			Description: "Replace the first occurrence of old_text with new_text in a file.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"old_text":{"type":"string"},"new_text":{"type":"string"},"privileged":{"type":"boolean"}},"required":["path","old_text","new_text"]}`),
		},
		{
			Name:        fileSearch,
			Description: "Search a file's content for a pattern.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"pattern":{"type":"string"},"privileged":{"type":"boolean"}},"required":["path","pattern"]}`),
		},
		{
			Name:        fileFind,
			Description: "Find files under a root directory matching a glob pattern.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"root":{"type":"string"},"pattern":{"type":"string"},"privileged":{"type":"boolean"}},"required":["root","pattern"]}`),
		},
		{Name: fileExists, Description: "Check whether a path exists in the sandbox.", Parameters: json.RawMessage(pathOnly)},
		{Name: fileDelete, Description: "Delete a file or directory in the sandbox.", Parameters: json.RawMessage(pathOnly)},
	}
}

func (FileToolbox) Has(functionName string) bool {
	switch functionName {
	case fileRead, fileWrite, fileReplace, fileSearch, fileFind, fileExists, fileDelete:
		return true
	default:
		return false
	}
}

func (t *FileToolbox) Invoke(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	switch functionName {
	case fileRead:
		var a struct {
			Path       string `json:"path"`
			Privileged bool   `json:"privileged"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return t.session.Client.FileRead(ctx, a.Path, a.Privileged)
	case fileWrite:
		var a struct {
			Path    string `json:"path"`
			Content string `json:"content"`
			WriteOptions
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return t.session.Client.FileWrite(ctx, a.Path, a.Content, a.WriteOptions)
	case fileReplace:
		var a struct {
			Path       string `json:"path"`
			OldText    string `json:"old_text"`
			NewText    string `json:"new_text"`
			Privileged bool   `json:"privileged"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return t.session.Client.FileReplace(ctx, a.Path, a.OldText, a.NewText, a.Privileged)
	case fileSearch:
		var a struct {
			Path       string `json:"path"`
			Pattern    string `json:"pattern"`
			Privileged bool   `json:"privileged"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return t.session.Client.FileSearch(ctx, a.Path, a.Pattern, a.Privileged)
	case fileFind:
		var a struct {
			Root       string `json:"root"`
			Pattern    string `json:"pattern"`
			Privileged bool   `json:"privileged"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return t.session.Client.FileFind(ctx, a.Root, a.Pattern, a.Privileged)
	case fileExists:
		var a struct {
			Path       string `json:"path"`
			Privileged bool   `json:"privileged"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return t.session.Client.FileExists(ctx, a.Path, a.Privileged)
	case fileDelete:
		var a struct {
			Path       string `json:"path"`
			Privileged bool   `json:"privileged"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return t.session.Client.FileDelete(ctx, a.Path, a.Privileged)
	default:
		return &models.ToolResult{Success: false, Message: "unknown function: " + functionName}, nil
	}
}
