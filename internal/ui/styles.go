// Package ui renders habits for the terminal with Lip Gloss.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	boxChecked   = "☑"
	boxUnchecked = "☐"

	cellDone   = "■"
	cellMissed = "□"
	cellFuture = "·"
)

// Init picks the color profile for w. Plain output is forced when noColor
// is set or NO_COLOR is in the environment.
func Init(w io.Writer, noColor bool) {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
}

// Success formats a confirmation line.
func Success(msg string) string {
	return successStyle.Render("✔ " + msg)
}

// Error formats an error line.
func Error(msg string) string {
	return errorStyle.Render("✖ " + msg)
}

// Muted formats secondary text.
func Muted(msg string) string {
	return mutedStyle.Render(msg)
}

// nameStyle colors a habit name with its own #RRGGBB color when it has one.
func nameStyle(color string) lipgloss.Style {
	if color == "" {
		return titleStyle
	}
	return titleStyle.Foreground(lipgloss.Color(color))
}

func panel(lines []string) string {
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func progressBar(done, total, width int) string {
	if total == 0 {
		total = 1
	}
	filled := min(done*width/total, width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
