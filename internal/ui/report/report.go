// Package report renders batch reports for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/ui/output"
	"go.trai.ch/lpkg/internal/ui/style"
)

// Render writes one line per item followed by the outcome summary.
func Render(w io.Writer, r *domain.Report) error {
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(output.ColorProfile()))

	width := 0
	for _, item := range r.Items {
		width = max(width, len(item.Item))
	}

	var b strings.Builder
	b.WriteString(style.Heading.Renderer(renderer).Render(r.Operation))
	b.WriteString("\n")
	for _, item := range r.Items {
		icon, s := decorate(item.Outcome)
		line := fmt.Sprintf("  %s %-*s", icon, width, item.Item)
		if item.Message != "" {
			line += "  " + firstLine(item.Message)
		}
		b.WriteString(s.Renderer(renderer).Render(strings.TrimRight(line, " ")))
		b.WriteString("\n")
	}
	b.WriteString(r.Summary())
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderIndex writes the outcome of an index rebuild.
func RenderIndex(w io.Writer, s *domain.IndexSummary) error {
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(output.ColorProfile()))

	var b strings.Builder
	b.WriteString(style.Heading.Renderer(renderer).Render("index"))
	b.WriteString("\n")
	line := fmt.Sprintf("  %s %s %s %d packages", style.Check, s.Path, style.Arrow, s.Packages)
	b.WriteString(style.Succeeded.Renderer(renderer).Render(line))
	b.WriteString("\n")
	for _, state := range []domain.RecordState{domain.StateReady, domain.StateIssuesOpen, domain.StateDraft} {
		if n := s.ByStatus[state]; n > 0 {
			fmt.Fprintf(&b, "    %-11s %d\n", state, n)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func decorate(outcome domain.Outcome) (string, lipgloss.Style) {
	switch outcome {
	case domain.OutcomeSucceeded:
		return style.Check, style.Succeeded
	case domain.OutcomeSoftIssue:
		return style.Warning, style.SoftIssue
	case domain.OutcomeFailed:
		return style.Cross, style.Failed
	default:
		return style.Circle, style.Skipped
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
