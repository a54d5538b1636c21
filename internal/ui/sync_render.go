package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// SyncViewModel holds data for rendering the sync report. The command
// layer fills it from the engine's run stats so rendering stays free of
// engine types.
type SyncViewModel struct {
	Mode     string
	Reason   string
	DryRun   bool
	Duration time.Duration

	FilesChecked   int
	FilesProcessed int
	FilesChanged   int
	FilesSynced    int
	FilesFailed    int
	FileErrors     map[string]string

	Backend       string
	Pushed        []string
	Pulled        []string
	Linked        []string
	UpdatedRemote []string
	UpdatedLocal  []string
	Conflicts     []string
	RemoteError   string

	Categories []ErrorCategoryRow
}

// ErrorCategoryRow is one classified error group for the summary table.
type ErrorCategoryRow struct {
	Category     string
	Count        int
	Recoverable  bool
	SuggestedFix string
	Example      string
}

// RenderSyncReport renders the end-of-run sync summary: header, file
// pass counters, remote outcomes, then the classified error table when
// anything failed.
func RenderSyncReport(vm SyncViewModel, width int) string {
	var sections []string

	sections = append(sections, renderSyncHeader(vm), "")
	sections = append(sections, renderFilePassTable(vm, width), "")

	if vm.Backend != "" {
		sections = append(sections, renderRemoteSection(vm, width)...)
	}

	if len(vm.Categories) > 0 {
		sections = append(sections, renderErrorTable(vm.Categories, width), "")
	}

	if len(vm.FileErrors) > 0 {
		sections = append(sections, renderFileErrors(vm.FileErrors, width))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderSyncHeader(vm SyncViewModel) string {
	mode := vm.Mode
	if vm.DryRun {
		mode += ", dry run"
	}
	label := fmt.Sprintf("%s Sync complete (%s, %s)", IconPass, mode, vm.Duration.Round(time.Millisecond))
	style := lipgloss.NewStyle().Bold(true).Foreground(ColorPass)
	if vm.FilesFailed > 0 || vm.RemoteError != "" {
		label = fmt.Sprintf("%s Sync finished with errors (%s, %s)", IconWarn, mode, vm.Duration.Round(time.Millisecond))
		style = lipgloss.NewStyle().Bold(true).Foreground(ColorWarn)
	}
	header := style.Render(label)
	if vm.Reason != "" {
		header += "\n" + MutedStyle.Render("  mode: "+vm.Reason)
	}
	return header
}

func renderFilePassTable(vm SyncViewModel, width int) string {
	rows := [][]string{}
	if vm.Mode == "full_rebuild" {
		rows = append(rows, []string{"Files processed", strconv.Itoa(vm.FilesProcessed)})
	} else {
		rows = append(rows,
			[]string{"Files checked", strconv.Itoa(vm.FilesChecked)},
			[]string{"Files changed", strconv.Itoa(vm.FilesChanged)},
		)
	}
	rows = append(rows,
		[]string{"Files synced", strconv.Itoa(vm.FilesSynced)},
		[]string{"Files failed", strconv.Itoa(vm.FilesFailed)},
	)

	return table.New().
		Headers("File pass", "Count").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(min(width, 44)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 1 {
				style = style.Align(lipgloss.Right)
			}
			if col == 0 {
				style = style.Foreground(ColorAccent)
			}
			return style
		}).
		String()
}

func renderRemoteSection(vm SyncViewModel, width int) []string {
	var sections []string
	title := CategoryStyle.Render(fmt.Sprintf("Remote: %s", vm.Backend))
	sections = append(sections, title)

	if vm.RemoteError != "" {
		sections = append(sections, TableWarningStyle.Render("  "+IconFail+" "+vm.RemoteError), "")
		return sections
	}

	lines := []string{
		renderOutcomeLine("pushed", vm.Pushed),
		renderOutcomeLine("pulled", vm.Pulled),
		renderOutcomeLine("linked", vm.Linked),
		renderOutcomeLine("updated remote", vm.UpdatedRemote),
		renderOutcomeLine("updated locally", vm.UpdatedLocal),
	}
	sections = append(sections, strings.Join(lines, "\n"))

	if len(vm.Conflicts) > 0 {
		var conflictLines []string
		conflictLines = append(conflictLines, lipgloss.NewStyle().Bold(true).Foreground(ColorWarn).Render(IconWarn+" Conflicts (both sides changed; resolve manually):"))
		for _, c := range vm.Conflicts {
			conflictLines = append(conflictLines, "  • "+c)
		}
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarn).
			Padding(0, 1).
			Width(width - 2)
		sections = append(sections, box.Render(strings.Join(conflictLines, "\n")))
	}

	sections = append(sections, "")
	return sections
}

func renderOutcomeLine(label string, ids []string) string {
	line := fmt.Sprintf("  %s %-16s %d", IconPass, label, len(ids))
	if len(ids) == 0 {
		return MutedStyle.Render(line)
	}
	preview := strings.Join(ids, ", ")
	return line + MutedStyle.Render("  ("+TruncateSimple(preview, 48)+")")
}

func renderErrorTable(categories []ErrorCategoryRow, width int) string {
	rows := [][]string{}
	for _, c := range categories {
		status := IconFail
		if c.Recoverable {
			status = IconWarn
		}
		rows = append(rows, []string{
			status + " " + c.Category,
			strconv.Itoa(c.Count),
			TruncateSimple(c.Example, max(width-50, 20)),
		})
	}

	return table.New().
		Headers("Error category", "Count", "Example").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			switch col {
			case 0:
				style = style.Width(26)
			case 1:
				style = style.Align(lipgloss.Right).Width(7)
			}
			return style
		}).
		String()
}

func renderFileErrors(errs map[string]string, width int) string {
	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(ColorWarn).Render(IconWarn+" File errors:"))
	for _, path := range sortedKeys(errs) {
		lines = append(lines, "  • "+path+": "+TruncateSimple(errs[path], max(width-len(path)-8, 20)))
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarn).
		Padding(0, 1).
		Width(width - 2)
	return box.Render(strings.Join(lines, "\n"))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
