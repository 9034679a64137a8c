package browser

import "testing"

func TestElementSelectorFormatsDataAttribute(t *testing.T) {
	inst := &Instance{}
	if got := inst.elementSelector(7); got != `[data-agent-index="7"]` {
		t.Fatalf("unexpected selector: %s", got)
	}
}

func TestLogConsoleMessageCapsAtFiveHundredLines(t *testing.T) {
	inst := &Instance{}
	for i := 0; i < 510; i++ {
		inst.LogConsoleMessage("line")
	}
	if len(inst.ConsoleView()) != 500 {
		t.Fatalf("expected console log capped at 500 lines, got %d", len(inst.ConsoleView()))
	}
}

func TestConsoleViewReturnsACopy(t *testing.T) {
	inst := &Instance{}
	inst.LogConsoleMessage("one")
	view := inst.ConsoleView()
	view[0] = "mutated"
	if inst.ConsoleView()[0] != "one" {
		t.Fatalf("expected ConsoleView to return a defensive copy")
	}
}
