package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mediacrawl/internal/downloader"
)

// ResultItem is one finished download shown in the recent list
type ResultItem struct {
	Time     time.Time
	Name     string
	Outcome  downloader.Outcome
	Reason   string
	Bytes    int64
	Duration time.Duration
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state
type Model struct {
	// UI components
	spinner  spinner.Model
	pageBar  progress.Model
	target   string
	maxItems int

	// Crawl state
	state     string
	page      int
	cycle     int
	cycleID   string
	pageTotal int
	pageDone  int
	lastHalt  string

	// Stats
	totals           downloader.Summary
	pagesDone        int
	sessionStartTime time.Time
	recent           []ResultItem

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// NewModel creates a dashboard for the crawl of target
func NewModel(target string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return &Model{
		spinner:          s,
		pageBar:          bar,
		target:           target,
		maxItems:         8,
		state:            "starting",
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// SetState records the crawl state for page
func (m *Model) SetState(state string, page int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = state
	if page > 0 {
		m.page = page
	}
}

// StartPage resets the page progress
func (m *Model) StartPage(page, queued int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.page = page
	m.pageTotal = queued
	m.pageDone = 0
}

// CompletePage counts a checkpointed page
func (m *Model) CompletePage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pagesDone++
}

// AddResult folds a download result into the totals and recent list
func (m *Model) AddResult(r downloader.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pageDone++
	m.totals.Queued++
	switch r.Outcome {
	case downloader.OutcomeDownloaded:
		m.totals.Downloaded++
		m.totals.Bytes += r.Bytes
	case downloader.OutcomeSkipped:
		m.totals.Skipped++
	case downloader.OutcomeFailed:
		m.totals.Failed++
	}

	name := r.Filename
	if name == "" {
		name = r.SourceURL
	}
	m.recent = append(m.recent, ResultItem{
		Time:     time.Now(),
		Name:     name,
		Outcome:  r.Outcome,
		Reason:   r.Reason,
		Bytes:    r.Bytes,
		Duration: r.Duration,
	})
	if len(m.recent) > m.maxItems {
		m.recent = m.recent[len(m.recent)-m.maxItems:]
	}
}

// StartCycle records a new supervisor cycle
func (m *Model) StartCycle(number int, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cycle = number
	m.cycleID = id
}

// EndCycle records why a supervisor cycle ended
func (m *Model) EndCycle(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastHalt = reason
	m.state = "restarting"
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Totals returns the running totals
func (m *Model) Totals() downloader.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals
}

// PageProgress returns the fraction of the current page's queue processed
func (m *Model) PageProgress() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.pageTotal == 0 {
		return 0
	}
	p := float64(m.pageDone) / float64(m.pageTotal)
	if p > 1 {
		p = 1
	}
	return p
}
