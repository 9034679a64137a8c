package browser

import (
	"encoding/json"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Instance wraps one pooled Playwright browser/context/page, plus the
// console log buffer exposed by console_view.
type Instance struct {
	browser playwright.Browser
	ctx     playwright.BrowserContext
	page    playwright.Page
	id      string

	consoleLog []string
}

func (i *Instance) cleanup() {
	if i.page != nil {
		i.page.Close()
	}
	if i.ctx != nil {
		i.ctx.Close()
	}
	if i.browser != nil {
		i.browser.Close()
	}
}

// Element is one interactive element on the current page, tagged with a
// stable page-local index (spec §4.2: "subsequent click/input by index
// must resolve to the element tagged with that index on the current DOM
// snapshot").
type Element struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
	Text  string `json:"text"`
	Role  string `json:"role,omitempty"`
}

// indexElementsScript tags every interactive element in the current DOM
// with data-agent-index and returns their descriptors. Re-run on every
// view_page/navigate so indices always describe the current snapshot.
const indexElementsScript = `
() => {
  const selector = 'a, button, input, select, textarea, [onclick], [role="button"], [role="link"], [role="textbox"]';
  const els = Array.from(document.querySelectorAll(selector));
  return els.map((el, i) => {
    el.setAttribute('data-agent-index', String(i));
    const text = (el.innerText || el.value || el.getAttribute('aria-label') || '').trim().slice(0, 120);
    return {
      index: i,
      tag: el.tagName.toLowerCase(),
      text: text,
      role: el.getAttribute('role') || ''
    };
  });
}
`

func (i *Instance) indexElements() ([]Element, error) {
	raw, err := i.page.Evaluate(indexElementsScript)
	if err != nil {
		return nil, fmt.Errorf("browser: index elements: %w", err)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var elements []Element
	if err := json.Unmarshal(encoded, &elements); err != nil {
		return nil, err
	}
	return elements, nil
}

// ViewResult is the result of view_page/navigate: extracted text content
// plus the current interactive-element index.
type ViewResult struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Markdown string    `json:"markdown"`
	Elements []Element `json:"elements"`
}

// ViewPage re-indexes the current page and extracts its visible text.
func (i *Instance) ViewPage() (*ViewResult, error) {
	elements, err := i.indexElements()
	if err != nil {
		return nil, err
	}
	text, err := i.page.InnerText("body")
	if err != nil {
		text = ""
	}
	title, _ := i.page.Title()
	return &ViewResult{URL: i.page.URL(), Title: title, Markdown: text, Elements: elements}, nil
}

// Navigate goes to url and returns the resulting view.
func (i *Instance) Navigate(url string) (*ViewResult, error) {
	if _, err := i.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return i.ViewPage()
}

func (i *Instance) elementSelector(index int) string {
	return fmt.Sprintf(`[data-agent-index="%d"]`, index)
}

// ClickIndex clicks the element tagged with the given page-local index.
func (i *Instance) ClickIndex(index int) error {
	return i.page.Click(i.elementSelector(index))
}

// ClickXY clicks at raw page coordinates.
func (i *Instance) ClickXY(x, y float64) error {
	return i.page.Mouse().Click(x, y)
}

// Input overwrites the value of the element at index with text, optionally
// pressing Enter afterward.
func (i *Instance) Input(index int, text string, pressEnter bool) error {
	selector := i.elementSelector(index)
	if err := i.page.Fill(selector, text); err != nil {
		return fmt.Errorf("browser: input: %w", err)
	}
	if pressEnter {
		return i.page.Press(selector, "Enter")
	}
	return nil
}

// MoveMouse moves the mouse to raw page coordinates.
func (i *Instance) MoveMouse(x, y float64) error {
	return i.page.Mouse().Move(x, y)
}

// PressKey sends a single key press to the focused element.
func (i *Instance) PressKey(key string) error {
	return i.page.Keyboard().Press(key)
}

// SelectOption selects an <option> by value on the <select> at index.
func (i *Instance) SelectOption(index int, value string) error {
	_, err := i.page.SelectOption(i.elementSelector(index), playwright.SelectOptionValues{
		Values: &[]string{value},
	})
	return err
}

// ScrollBy scrolls the page by dy pixels (negative scrolls up).
func (i *Instance) ScrollBy(dy float64) error {
	_, err := i.page.Evaluate(`(dy) => window.scrollBy(0, dy)`, dy)
	return err
}

// Screenshot captures the current viewport as PNG bytes.
func (i *Instance) Screenshot() ([]byte, error) {
	return i.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
}

// ConsoleExec evaluates arbitrary JavaScript in the page context and
// returns its JSON-encodable result.
func (i *Instance) ConsoleExec(script string) (any, error) {
	return i.page.Evaluate(script)
}

// LogConsoleMessage appends a console message to the buffer console_view
// reads, keeping the last 500 lines. No page "console" event listener
// calls it, so the buffer holds only lines passed to this method.
func (i *Instance) LogConsoleMessage(msg string) {
	i.consoleLog = append(i.consoleLog, msg)
	if len(i.consoleLog) > 500 {
		i.consoleLog = i.consoleLog[len(i.consoleLog)-500:]
	}
}

// ConsoleView returns the buffered console log lines.
func (i *Instance) ConsoleView() []string {
	out := make([]string, len(i.consoleLog))
	copy(out, i.consoleLog)
	return out
}

// Restart reloads the current page, clearing its console buffer and
// re-establishing the interactive-element index from scratch.
func (i *Instance) Restart() (*ViewResult, error) {
	i.consoleLog = nil
	if _, err := i.page.Reload(); err != nil {
		return nil, fmt.Errorf("browser: restart: %w", err)
	}
	return i.ViewPage()
}
