package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	suggestBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Padding(0, 1).
		Margin(1, 0)

	suggestTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	suggestHitStyle = lipgloss.NewStyle().
		Foreground(ColorPass).
		Bold(true)
)

// SuggestViewModel holds data for rendering the lookup suggestion box
type SuggestViewModel struct {
	Query       string
	Corrected   string // closest fuzzy match, "" when none
	Suggestions []string
	NoResults   bool
}

// RenderSuggestionBox renders lookup context: the query, the closest
// correction when the exact term missed, and alternate candidates.
func RenderSuggestionBox(vm SuggestViewModel) string {
	var sections []string

	header := fmt.Sprintf("Lookup: %q", vm.Query)
	sections = append(sections, suggestTitleStyle.Render(header))

	var contextLines []string
	if vm.Corrected != "" {
		contextLines = append(contextLines,
			fmt.Sprintf("%s No exact match. Did you mean: %s", IconWarn, suggestHitStyle.Render(vm.Corrected)))
	}
	if vm.NoResults && vm.Corrected == "" {
		contextLines = append(contextLines, IconWarn+" No issues found.")
	}
	if len(vm.Suggestions) > 0 {
		contextLines = append(contextLines, "Close matches:")
		for _, s := range vm.Suggestions {
			contextLines = append(contextLines, "  • "+s)
		}
	}

	if len(contextLines) > 0 {
		sections = append(sections, strings.Join(contextLines, "\n"))
	}

	return suggestBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}
