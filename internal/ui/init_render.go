package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"github.com/charmbracelet/lipgloss/table"
)

// InitResult aggregates all information from the initialization process
type InitResult struct {
	Root       string
	RoadmapDir string
	DBPath     string
	Prefix     string
	ConfigPath string

	CreatedDirs []string
	Warnings    []string

	QuickstartCommands []string
}

// RenderInitReport generates the report for the init command
func RenderInitReport(res InitResult, width int) string {
	var sections []string

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPass).
		Render(IconPass + " rdm initialized")
	sections = append(sections, header, "")

	// Created layout as a checked list
	l := list.New().
		Enumerator(func(_ list.Items, i int) string {
			return RenderPass(IconPass)
		}).
		EnumeratorStyle(lipgloss.NewStyle().MarginRight(1))

	dirList := list.New().Enumerator(func(_ list.Items, i int) string {
		return RenderPass(IconPass)
	}).EnumeratorStyle(lipgloss.NewStyle().MarginRight(1))
	for _, d := range res.CreatedDirs {
		dirList.Item(d)
	}
	l.Item("Managed tree: " + res.RoadmapDir)
	l.Item(dirList)
	if res.ConfigPath != "" {
		l.Item("Config: " + res.ConfigPath)
	}
	sections = append(sections, l.String(), "")

	// Summary table
	detailsRows := [][]string{
		{"Database", res.DBPath},
		{"Issue Prefix", res.Prefix},
		{"Next IDs", res.Prefix + "-1, " + res.Prefix + "-2, ..."},
	}

	summaryTable := table.New().
		Headers("Component", "Configuration").
		Rows(detailsRows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				if col == 0 {
					return TableHeaderStyle.Width(20)
				}
				return TableHeaderStyle.Width(width - 20 - 3)
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Bold(true).Foreground(ColorAccent)
			}
			return style
		})

	sections = append(sections, summaryTable.String(), "")

	if len(res.Warnings) > 0 {
		warnBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarn).
			Padding(0, 1).
			Width(width - 2)

		var warnContent []string
		warnContent = append(warnContent, lipgloss.NewStyle().Bold(true).Foreground(ColorWarn).Render(IconWarn+" Warnings:"))
		for _, w := range res.Warnings {
			warnContent = append(warnContent, "  • "+w)
		}
		sections = append(sections, warnBox.Render(strings.Join(warnContent, "\n")), "")
	}

	if len(res.QuickstartCommands) > 0 {
		sections = append(sections, lipgloss.NewStyle().Bold(true).Render("Next Steps:"))
		for _, cmd := range res.QuickstartCommands {
			sections = append(sections, "  • "+lipgloss.NewStyle().Foreground(ColorAccent).Render(cmd))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
