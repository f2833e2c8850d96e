package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"mediacrawl/internal/downloader"
	"mediacrawl/pkg/crawler"
)

// TUI is the full-screen crawl dashboard
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a dashboard for the crawl of target
func NewTUI(target string, opts ...tea.ProgramOption) *TUI {
	model := NewModel(target)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	program := tea.NewProgram(model, opts...)

	return &TUI{
		program: program,
		model:   model,
	}
}

// Start runs the dashboard until the user quits or Stop is called
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Model returns the dashboard state
func (t *TUI) Model() *Model {
	return t.model
}

// Transition matches the crawler's transition hook
func (t *TUI) Transition(_, to crawler.State, page int) {
	t.Send(StateMsg{State: to.String(), Page: page})
	if to == crawler.StateCheckpoint {
		t.Send(PageDoneMsg{Page: page})
	}
}

// PageQueued reports how many links a page produced
func (t *TUI) PageQueued(page, queued int) {
	t.Send(PageQueuedMsg{Page: page, Queued: queued})
}

// Result matches the download queue's result hook
func (t *TUI) Result(_ context.Context, r downloader.Result) {
	t.Send(ResultMsg{Result: r})
}

// CycleStarted reports a new supervisor cycle
func (t *TUI) CycleStarted(number int, id string) {
	t.Send(CycleStartMsg{Number: number, ID: id})
}

// CycleEnded reports the end of a supervisor cycle
func (t *TUI) CycleEnded(reason string) {
	t.Send(CycleEndMsg{Reason: reason})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}
