// Package style provides shared UI styling primitives for terminal output.
package style

import "github.com/charmbracelet/lipgloss"

// Colors.
var (
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	Iris   = lipgloss.Color("#8B5CF6")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Circle  = "○"
	Arrow   = "→"
)

// Styles used to render batch reports.
var (
	Succeeded = lipgloss.NewStyle().Foreground(Green)
	SoftIssue = lipgloss.NewStyle().Foreground(Yellow)
	Failed    = lipgloss.NewStyle().Foreground(Red)
	Skipped   = lipgloss.NewStyle().Foreground(Slate)
	Heading   = lipgloss.NewStyle().Bold(true).Foreground(Iris)
)
