package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

const (
	actionViewPage      = "browser_view_page"
	actionNavigate      = "browser_navigate"
	actionClick         = "browser_click"
	actionInput         = "browser_input"
	actionMoveMouse     = "browser_move_mouse"
	actionPressKey      = "browser_press_key"
	actionSelectOption  = "browser_select_option"
	actionScrollUp      = "browser_scroll_up"
	actionScrollDown    = "browser_scroll_down"
	actionScreenshot    = "browser_screenshot"
	actionConsoleExec   = "browser_console_exec"
	actionConsoleView   = "browser_console_view"
	actionRestart       = "browser_restart"
	scrollStepPixels    = 600
)

// Toolbox exposes a single lazily-connected browser instance per sandbox,
// acquiring it from the pool on first use and reusing it for every later
// call; an instance whose connection has dropped is not replaced.
type Toolbox struct {
	pool *Pool

	mu       sync.Mutex
	instance *Instance
}

// NewToolbox wraps a pool that the toolbox will Acquire its one instance
// from on first use.
func NewToolbox(pool *Pool) *Toolbox {
	return &Toolbox{pool: pool}
}

func (Toolbox) Name() string { return "browser" }

func (Toolbox) Schemas() []toolsys.Schema {
	indexParam := `"index":{"type":"integer","description":"page-local element index from the last view_page/navigate"}`
	return []toolsys.Schema{
		{Name: actionViewPage, Description: "Extract the current page's text and interactive element index.", Parameters: json.RawMessage(`{"type":"object","properties":{}}`)},
		{Name: actionNavigate, Description: "Navigate to a URL and return the resulting page view.", Parameters: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`)},
		{
			Name:        actionClick,
			Description: "Click an element by page-local index, or at raw x/y coordinates.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{` + indexParam + `,"x":{"type":"number"},"y":{"type":"number"}}}`),
		},
		{
			Name:        actionInput,
			Description: "Overwrite the value of an input element by index, optionally pressing Enter.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{` + indexParam + `,"text":{"type":"string"},"press_enter":{"type":"boolean"}},"required":["index","text"]}`),
		},
		{Name: actionMoveMouse, Description: "Move the mouse to raw x/y coordinates.", Parameters: json.RawMessage(`{"type":"object","properties":{"x":{"type":"number"},"y":{"type":"number"}},"required":["x","y"]}`)},
		{Name: actionPressKey, Description: "Press a single key on the focused element.", Parameters: json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`)},
		{
			Name:        actionSelectOption,
			Description: "Select an option by value on a <select> element by index.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{` + indexParam + `,"value":{"type":"string"}},"required":["index","value"]}`),
		},
		{Name: actionScrollUp, Description: "Scroll the page up.", Parameters: json.RawMessage(`{"type":"object","properties":{}}`)},
		{Name: actionScrollDown, Description: "Scroll the page down.", Parameters: json.RawMessage(`{"type":"object","properties":{}}`)},
		{Name: actionScreenshot, Description: "Capture a PNG screenshot of the current viewport.", Parameters: json.RawMessage(`{"type":"object","properties":{}}`)},
		{Name: actionConsoleExec, Description: "Evaluate JavaScript in the page context.", Parameters: json.RawMessage(`{"type":"object","properties":{"script":{"type":"string"}},"required":["script"]}`)},
		{Name: actionConsoleView, Description: "View buffered browser console log lines.", Parameters: json.RawMessage(`{"type":"object","properties":{}}`)},
		{Name: actionRestart, Description: "Reload the current page and reset its console log.", Parameters: json.RawMessage(`{"type":"object","properties":{}}`)},
	}
}

func (Toolbox) Has(functionName string) bool {
	switch functionName {
	case actionViewPage, actionNavigate, actionClick, actionInput, actionMoveMouse,
		actionPressKey, actionSelectOption, actionScrollUp, actionScrollDown,
		actionScreenshot, actionConsoleExec, actionConsoleView, actionRestart:
		return true
	default:
		return false
	}
}

func (t *Toolbox) ensureInstance(ctx context.Context) (*Instance, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.instance != nil {
		return t.instance, nil
	}
	inst, err := t.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	t.instance = inst
	return inst, nil
}

// Close releases the toolbox's browser instance back to its pool.
func (t *Toolbox) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.instance != nil {
		t.pool.Release(t.instance)
		t.instance = nil
	}
}

func (t *Toolbox) Invoke(ctx context.Context, functionName string, args json.RawMessage) (*models.ToolResult, error) {
	inst, err := t.ensureInstance(ctx)
	if err != nil {
		return &models.ToolResult{Success: false, Message: "browser connect failed: " + err.Error()}, nil
	}

	switch functionName {
	case actionViewPage:
		view, err := inst.ViewPage()
		return viewResult(view, err)
	case actionNavigate:
		var a struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		view, err := inst.Navigate(a.URL)
		return viewResult(view, err)
	case actionClick:
		var a struct {
			Index *int     `json:"index"`
			X     *float64 `json:"x"`
			Y     *float64 `json:"y"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		if a.Index != nil {
			err = inst.ClickIndex(*a.Index)
		} else if a.X != nil && a.Y != nil {
			err = inst.ClickXY(*a.X, *a.Y)
		} else {
			return &models.ToolResult{Success: false, Message: "click requires index or x/y"}, nil
		}
		return simpleResult("clicked", err)
	case actionInput:
		var a struct {
			Index      int    `json:"index"`
			Text       string `json:"text"`
			PressEnter bool   `json:"press_enter"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return simpleResult("input sent", inst.Input(a.Index, a.Text, a.PressEnter))
	case actionMoveMouse:
		var a struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return simpleResult("moved", inst.MoveMouse(a.X, a.Y))
	case actionPressKey:
		var a struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return simpleResult("key pressed", inst.PressKey(a.Key))
	case actionSelectOption:
		var a struct {
			Index int    `json:"index"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		return simpleResult("option selected", inst.SelectOption(a.Index, a.Value))
	case actionScrollUp:
		return simpleResult("scrolled up", inst.ScrollBy(-scrollStepPixels))
	case actionScrollDown:
		return simpleResult("scrolled down", inst.ScrollBy(scrollStepPixels))
	case actionScreenshot:
		data, err := inst.Screenshot()
		if err != nil {
			return &models.ToolResult{Success: false, Message: err.Error()}, nil
		}
		return &models.ToolResult{Success: true, Message: "screenshot captured", Data: base64.StdEncoding.EncodeToString(data)}, nil
	case actionConsoleExec:
		var a struct {
			Script string `json:"script"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err)
		}
		result, err := inst.ConsoleExec(a.Script)
		if err != nil {
			return &models.ToolResult{Success: false, Message: err.Error()}, nil
		}
		return &models.ToolResult{Success: true, Message: "evaluated", Data: result}, nil
	case actionConsoleView:
		return &models.ToolResult{Success: true, Data: inst.ConsoleView()}, nil
	case actionRestart:
		view, err := inst.Restart()
		return viewResult(view, err)
	default:
		return &models.ToolResult{Success: false, Message: "unknown function: " + functionName}, nil
	}
}

func viewResult(view *ViewResult, err error) (*models.ToolResult, error) {
	if err != nil {
		return &models.ToolResult{Success: false, Message: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Message: fmt.Sprintf("viewing %s", view.URL), Data: view}, nil
}

func simpleResult(message string, err error) (*models.ToolResult, error) {
	if err != nil {
		return &models.ToolResult{Success: false, Message: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Message: message}, nil
}

func invalidArgs(err error) (*models.ToolResult, error) {
	return &models.ToolResult{Success: false, Message: "invalid arguments: " + err.Error()}, nil
}
