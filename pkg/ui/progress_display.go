package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"mediacrawl/internal/downloader"
)

// ProgressDisplay renders a single status line for the crawl: the current
// page, progress through its download queue and running totals. In debug
// mode it prints one line per download instead, so it does not fight with
// log output.
type ProgressDisplay struct {
	mu sync.Mutex

	out     io.Writer
	target  string
	isDebug bool

	page      int
	pageTotal int
	pageDone  int
	current   string

	totals    downloader.Summary
	startTime time.Time
}

// NewProgressDisplay creates a progress display for the crawl of target
func NewProgressDisplay(out io.Writer, target string, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		target:    target,
		isDebug:   debug,
		startTime: time.Now(),
	}
}

// StartPage resets the page bar; queued is the number of links found
func (p *ProgressDisplay) StartPage(page, queued int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = page
	p.pageTotal = queued
	p.pageDone = 0
	p.current = ""

	if p.isDebug {
		fmt.Fprintf(p.out, "%s page %d: %d links\n", Magenta("→"), page, queued)
		return
	}
	p.printProgress()
}

// Record folds one download result into the display
func (p *ProgressDisplay) Record(r downloader.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pageDone++
	p.current = r.Filename
	p.totals.Queued++
	switch r.Outcome {
	case downloader.OutcomeDownloaded:
		p.totals.Downloaded++
		p.totals.Bytes += r.Bytes
	case downloader.OutcomeSkipped:
		p.totals.Skipped++
	case downloader.OutcomeFailed:
		p.totals.Failed++
	}

	if p.isDebug {
		p.printDebugResult(r)
		return
	}
	p.printProgress()
}

// Halted reports the end of a supervisor cycle
func (p *ProgressDisplay) Halted(page int, reason string, restartIn time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s Halted at page %d (%s), restarting in %s\n",
		warningStyle.Render("⚠"),
		page,
		reason,
		FormatDuration(restartIn),
	)
}

// Totals returns the running totals
func (p *ProgressDisplay) Totals() downloader.Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totals
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	barWidth := 20
	filled := 0
	if p.pageTotal > 0 {
		filled = p.pageDone * barWidth / p.pageTotal
	}
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s p.%d [%s] %d/%d • %d new • %d skipped • %s",
		Cyan(p.target),
		p.page,
		bar,
		p.pageDone,
		p.pageTotal,
		p.totals.Downloaded,
		p.totals.Skipped,
		FormatBytes(p.totals.Bytes),
	)

	if p.current != "" {
		line += fmt.Sprintf(" • %s", p.current)
	}

	if p.totals.Failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.totals.Failed)))
	}

	// Clear line and print
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// printDebugResult prints one line per download in debug mode
func (p *ProgressDisplay) printDebugResult(r downloader.Result) {
	switch r.Outcome {
	case downloader.OutcomeDownloaded:
		fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), r.Filename, FormatBytes(r.Bytes))
	case downloader.OutcomeSkipped:
		fmt.Fprintf(p.out, "%s %s • %s\n", Dim("="), r.Filename, Dim(r.Reason))
	default:
		fmt.Fprintf(p.out, "%s %s • %s\n", Red("✗"), r.SourceURL, r.Reason)
	}
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Fprintf(p.out, "\n\n%s Downloaded %d files from %s\n",
		Green("✓"),
		p.totals.Downloaded,
		p.target,
	)

	fmt.Fprintf(p.out, "  %s %s in %s\n",
		Dim("•"),
		FormatBytes(p.totals.Bytes),
		FormatDuration(elapsed),
	)

	if p.totals.Skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d already on disk\n", Dim("•"), p.totals.Skipped)
	}
	if p.totals.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %d downloads failed\n", Dim("•"), p.totals.Failed)
	}
}
