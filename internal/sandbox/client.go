package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haasonsaas/agentexec/pkg/models"
)

// Client is a thin net/http wrapper over a sandbox's supervisor/status,
// shell/*, and file/* wire endpoints (spec §1: "the internal HTTP API of
// the sandbox container ... the core only uses a Sandbox client
// capability surface" — this is that client, not the wire protocol
// itself).
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client against baseURL with the given per-call
// timeout (spec §5: 600 s default HTTP-to-sandbox timeout).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type wireResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Client) post(ctx context.Context, path string, body any) (*wireResponse, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (*wireResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*wireResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("sandbox: decode %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode >= 400 && wire.Message == "" {
		wire.Message = fmt.Sprintf("sandbox returned status %d", resp.StatusCode)
	}
	return &wire, nil
}

func toToolResult(wire *wireResponse, err error) (*models.ToolResult, error) {
	if err != nil {
		return &models.ToolResult{Success: false, Message: err.Error()}, nil
	}
	var data any
	if len(wire.Data) > 0 {
		_ = json.Unmarshal(wire.Data, &data)
	}
	return &models.ToolResult{Success: wire.Success, Message: wire.Message, Data: data}, nil
}

// SupervisorStatus returns the named-service → state map reported by
// supervisor/status.
func (c *Client) SupervisorStatus(ctx context.Context) (map[string]string, error) {
	wire, err := c.get(ctx, "/supervisor/status")
	if err != nil {
		return nil, err
	}
	var statuses map[string]string
	if err := json.Unmarshal(wire.Data, &statuses); err != nil {
		return nil, fmt.Errorf("sandbox: decode supervisor status: %w", err)
	}
	return statuses, nil
}

// --- Shell capability surface ---

func (c *Client) ExecCommand(ctx context.Context, execDir, command string) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/shell/exec_command", map[string]any{"exec_dir": execDir, "command": command})
	return toToolResult(wire, err)
}

func (c *Client) ReadOutput(ctx context.Context, includeConsole bool) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/shell/read_output", map[string]any{"include_console": includeConsole})
	return toToolResult(wire, err)
}

func (c *Client) Wait(ctx context.Context, timeoutS int) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/shell/wait", map[string]any{"timeout_s": timeoutS})
	return toToolResult(wire, err)
}

func (c *Client) WriteInput(ctx context.Context, text string, pressEnter bool) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/shell/write_input", map[string]any{"text": text, "press_enter": pressEnter})
	return toToolResult(wire, err)
}

func (c *Client) Kill(ctx context.Context) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/shell/kill", nil)
	return toToolResult(wire, err)
}

// --- File capability surface ---

// WriteOptions controls append/newline/privileged semantics for file
// writes (spec §4.2).
type WriteOptions struct {
	Append          bool `json:"append,omitempty"`
	LeadingNewline  bool `json:"leading_newline,omitempty"`
	TrailingNewline bool `json:"trailing_newline,omitempty"`
	Privileged      bool `json:"privileged,omitempty"`
}

func (c *Client) FileRead(ctx context.Context, path string, privileged bool) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/file/read", map[string]any{"path": path, "privileged": privileged})
	return toToolResult(wire, err)
}

func (c *Client) FileWrite(ctx context.Context, path, content string, opts WriteOptions) (*models.ToolResult, error) {
	body := map[string]any{"path": path, "content": content}
	body["append"] = opts.Append
	body["leading_newline"] = opts.LeadingNewline
	body["trailing_newline"] = opts.TrailingNewline
	body["privileged"] = opts.Privileged
	wire, err := c.post(ctx, "/file/write", body)
	return toToolResult(wire, err)
}

func (c *Client) FileReplace(ctx context.Context, path, oldText, newText string, privileged bool) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/file/replace", map[string]any{
		"path": path, "old_text": oldText, "new_text": newText, "privileged": privileged,
	})
	return toToolResult(wire, err)
}

func (c *Client) FileSearch(ctx context.Context, path, pattern string, privileged bool) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/file/search", map[string]any{"path": path, "pattern": pattern, "privileged": privileged})
	return toToolResult(wire, err)
}

func (c *Client) FileFind(ctx context.Context, root, pattern string, privileged bool) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/file/find", map[string]any{"root": root, "pattern": pattern, "privileged": privileged})
	return toToolResult(wire, err)
}

func (c *Client) FileExists(ctx context.Context, path string, privileged bool) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/file/exists", map[string]any{"path": path, "privileged": privileged})
	return toToolResult(wire, err)
}

func (c *Client) FileDelete(ctx context.Context, path string, privileged bool) (*models.ToolResult, error) {
	wire, err := c.post(ctx, "/file/delete", map[string]any{"path": path, "privileged": privileged})
	return toToolResult(wire, err)
}

// FileUpload streams raw bytes to an absolute sandbox path.
func (c *Client) FileUpload(ctx context.Context, path string, data []byte) (*models.ToolResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/file/upload?path="+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	wire, err := c.do(req)
	return toToolResult(wire, err)
}

// FileDownload retrieves the raw bytes at an absolute sandbox path.
func (c *Client) FileDownload(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/file/download?path="+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox: download %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("sandbox: file not found: %s", path)
	}
	return io.ReadAll(resp.Body)
}
