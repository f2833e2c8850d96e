package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Banner is printed at the top of an interactive run
const Banner = `
  ┌┬┐┌─┐┌┬┐┬┌─┐┌─┐┬─┐┌─┐┬ ┬┬
  │││├┤  │││├─┤│  ├┬┘├─┤││││
  ┴ ┴└─┘─┴┘┴┴ ┴└─┘┴└─┴ ┴└┴┘┴─┘
`

// Output is where the Print helpers write
var Output io.Writer = os.Stdout

var (
	cyan    = lipgloss.Color("#00FFFF")
	yellow  = lipgloss.Color("#FFFF00")
	red     = lipgloss.Color("#FF0000")
	green   = lipgloss.Color("#39FF14")
	magenta = lipgloss.Color("#FF00FF")
	grey    = lipgloss.Color("#808080")

	bannerStyle    = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(yellow)
	errorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(green)
	warningStyle   = lipgloss.NewStyle().Foreground(yellow)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(grey)
)

// Color helpers for inline use
func Cyan(s string) string    { return labelStyle.Render(s) }
func Yellow(s string) string  { return valueStyle.Render(s) }
func Red(s string) string     { return errorStyle.Render(s) }
func Green(s string) string   { return successStyle.Render(s) }
func Magenta(s string) string { return highlightStyle.Render(s) }
func Dim(s string) string     { return dimStyle.Render(s) }

// PrintBanner prints the application banner
func PrintBanner() {
	fmt.Fprint(Output, bannerStyle.Render(Banner))
	fmt.Fprintln(Output)
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, warningStyle.Render(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, warningStyle.Render(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}
