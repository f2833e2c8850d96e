package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"mediacrawl/internal/downloader"
)

// StateMsg is sent on every crawl state change
type StateMsg struct {
	State string
	Page  int
}

// PageQueuedMsg is sent once a page's links are queued
type PageQueuedMsg struct {
	Page   int
	Queued int
}

// PageDoneMsg is sent after a page is checkpointed
type PageDoneMsg struct {
	Page int
}

// ResultMsg carries one download result
type ResultMsg struct {
	Result downloader.Result
}

// CycleStartMsg is sent when the supervisor starts a cycle
type CycleStartMsg struct {
	Number int
	ID     string
}

// CycleEndMsg is sent when a supervisor cycle ends
type CycleEndMsg struct {
	Reason string
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case StateMsg:
		m.SetState(msg.State, msg.Page)
		return m, nil

	case PageQueuedMsg:
		m.StartPage(msg.Page, msg.Queued)
		return m, nil

	case PageDoneMsg:
		m.CompletePage()
		return m, nil

	case ResultMsg:
		m.AddResult(msg.Result)
		if msg.Result.Outcome == downloader.OutcomeFailed {
			m.AddLogMessage("ERROR", "Failed: "+msg.Result.SourceURL+" - "+msg.Result.Reason)
		}
		return m, nil

	case CycleStartMsg:
		m.StartCycle(msg.Number, msg.ID)
		m.AddLogMessage("INFO", "Session cycle started")
		return m, nil

	case CycleEndMsg:
		m.EndCycle(msg.Reason)
		m.AddLogMessage("WARN", "Cycle ended: "+msg.Reason)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
