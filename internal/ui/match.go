package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/untoldecay/roadmap/internal/dedup"
)

var (
	matchPaneStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Padding(0, 1)

	matchPaneLabelStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	matchFieldStyle = lipgloss.NewStyle().
		Foreground(ColorMuted)
)

// RenderMatchComparison renders one duplicate candidate as side-by-side
// panes for interactive review: the local issue on the left, the remote
// record on the right, with the detector's verdict underneath.
func RenderMatchComparison(m dedup.Match, index, total int) string {
	header := CategoryStyle.Render(
		fmt.Sprintf("Match %d of %d: %s (confidence %.2f)", index, total, m.Type, m.Confidence))

	paneWidth := (GetWidth() - 6) / 2
	if paneWidth < 30 {
		paneWidth = 30
	}
	if paneWidth > 60 {
		paneWidth = 60
	}

	local := renderMatchPane("LOCAL", m.Local, paneWidth)
	remote := renderMatchPane("REMOTE", m.Remote, paneWidth)
	panes := lipgloss.JoinHorizontal(lipgloss.Top, local, " ", remote)

	var footer []string
	footer = append(footer, "recommendation: "+string(m.Recommended))
	if v, ok := m.Details["title_similarity"].(float64); ok {
		footer = append(footer, fmt.Sprintf("title similarity: %.2f", v))
	}
	if v, ok := m.Details["content_similarity"].(float64); ok {
		footer = append(footer, fmt.Sprintf("content similarity: %.2f", v))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		panes,
		matchFieldStyle.Render(strings.Join(footer, "  ·  ")),
	)
}

func renderMatchPane(label string, r dedup.Record, width int) string {
	var lines []string
	lines = append(lines, matchPaneLabelStyle.Render(label))
	lines = append(lines, matchFieldStyle.Render("id: ")+r.ID)
	if r.RemoteKey != "" {
		lines = append(lines, matchFieldStyle.Render("remote: ")+r.RemoteKey)
	}
	lines = append(lines, matchFieldStyle.Render("title: ")+TruncateSimple(r.Title, width-9))
	if body := Excerpt(r.Content, (width-2)*3); body != "" {
		lines = append(lines, "")
		lines = append(lines, WrapText(body, width-2))
	}
	return matchPaneStyle.Width(width).Render(strings.Join(lines, "\n"))
}
