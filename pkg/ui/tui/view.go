package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"mediacrawl/internal/downloader"
	"mediacrawl/pkg/ui"
)

// View renders the entire TUI
func (m *Model) View() string {
	m.mu.RLock()
	width, height, showHelp := m.width, m.height, m.showHelp
	m.mu.RUnlock()

	if width == 0 || height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	columnWidth := (width - 4) / 2
	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		lipgloss.JoinVertical(lipgloss.Left,
			m.renderStatsPanel(columnWidth),
			m.renderPagePanel(columnWidth),
		),
		"  ",
		lipgloss.JoinVertical(lipgloss.Left,
			m.renderRecentPanel(columnWidth),
			m.renderLogsPanel(columnWidth),
		),
	)
	sections = append(sections, mainContent)

	if showHelp {
		sections = append(sections, m.renderHelp(width))
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to stop"))
	}

	return baseStyle.Width(width).Height(height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderHeader renders the title line with the spinner
func (m *Model) renderHeader() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return headerStyle.Render(fmt.Sprintf("%s mediacrawl • %s", m.spinner.View(), m.target))
}

// renderStatsPanel renders the run totals
func (m *Model) renderStatsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" RUN ")
	elapsed := time.Since(m.sessionStartTime)

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(ui.FormatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Cycle:"), statsValueStyle.Render(fmt.Sprintf("#%d %s", m.cycle, shortID(m.cycleID)))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Pages done:"), statsValueStyle.Render(fmt.Sprintf("%d", m.pagesDone))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Downloaded:"), statsValueStyle.Render(fmt.Sprintf("%d files (%s)", m.totals.Downloaded, ui.FormatBytes(m.totals.Bytes)))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Skipped:"), statsValueStyle.Render(fmt.Sprintf("%d", m.totals.Skipped))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failed:"), failedStyle(m.totals.Failed).Render(fmt.Sprintf("%d", m.totals.Failed))),
	}
	if m.lastHalt != "" {
		stats = append(stats, warningStyle.Render("Last halt: "+m.lastHalt))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

// renderPagePanel renders the current page and its queue progress
func (m *Model) renderPagePanel(width int) string {
	progress := m.PageProgress()

	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" PAGE ")
	bar := m.pageBar
	bar.Width = width - 8
	if bar.Width < 10 {
		bar.Width = 10
	}

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Page:"), statsValueStyle.Render(fmt.Sprintf("%d", m.page))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("State:"), stateStyle(m.state).Render(m.state)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Queue:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", m.pageDone, m.pageTotal))),
		bar.ViewAs(progress),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

// renderRecentPanel renders the most recent download results
func (m *Model) renderRecentPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" RECENT ")

	if len(m.recent) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("No downloads yet")
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, content),
		)
	}

	items := make([]string, 0, len(m.recent))
	for i := len(m.recent) - 1; i >= 0; i-- {
		items = append(items, renderResult(m.recent[i], width-8))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

func renderResult(item ResultItem, width int) string {
	name := truncate(item.Name, width-20)
	switch item.Outcome {
	case downloader.OutcomeDownloaded:
		return successStyle.Render("✓ ") + name + " " + statsValueStyle.Render(ui.FormatBytes(item.Bytes))
	case downloader.OutcomeSkipped:
		return skippedStyle.Render("= " + name)
	default:
		return errorStyle.Render("✗ ") + name + " " + errorStyle.Render(item.Reason)
	}
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for i := start; i < len(m.logMessages); i++ {
		log := m.logMessages[i]
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp(width int) string {
	help := `
  Keys:
    q/Q      - Stop the crawl and quit
    ctrl+l   - Clear the log panel
    ?        - Toggle this help

  Results:
    ` + successStyle.Render("✓") + `        - Downloaded
    ` + skippedStyle.Render("=") + `        - Already on disk
    ` + errorStyle.Render("✗") + `        - Failed (see the failure log)
`

	return panelStyle.Width(width).Render(help)
}

func failedStyle(n int) lipgloss.Style {
	if n > 0 {
		return errorStyle
	}
	return statsValueStyle
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, limit int) string {
	if limit < 4 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
