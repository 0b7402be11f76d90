// Package ui prints styled terminal output: the banner, status lines, fetch
// progress, command summaries and desktop notifications.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Banner is printed by commands that talk to the network
const Banner = `
 ┌─────────────────────────────────────┐
 │  igepub  ·  posts in, an e-book out │
 └─────────────────────────────────────┘`

var (
	colorCyan    = lipgloss.Color("#00D7FF")
	colorYellow  = lipgloss.Color("#FFD700")
	colorRed     = lipgloss.Color("#FF5F5F")
	colorGreen   = lipgloss.Color("#5FD75F")
	colorMagenta = lipgloss.Color("#D75FD7")
	colorDim     = lipgloss.Color("#8A8A8A")

	cyanStyle    = lipgloss.NewStyle().Foreground(colorCyan)
	yellowStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	redStyle     = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	greenStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	magentaStyle = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// Color functions for terminal output
var (
	Cyan    = cyanStyle.Render
	Yellow  = yellowStyle.Render
	Red     = redStyle.Render
	Green   = greenStyle.Render
	Magenta = magentaStyle.Render
	Dim     = dimStyle.Render
)

var (
	out   io.Writer = os.Stdout
	quiet bool
)

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	quiet = q
}

// SetOutput redirects terminal output
func SetOutput(w io.Writer) {
	out = w
}

// PrintBanner prints the banner
func PrintBanner() {
	if quiet {
		return
	}
	fmt.Fprintln(out, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	if quiet {
		return
	}
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quiet {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, Magenta(msg))
}
