package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/untoldecay/roadmap/internal/config"
	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/ui"
)

var milestoneCmd = &cobra.Command{
	Use:     "milestone",
	GroupID: "issues",
	Short:   "Create and list milestones",
}

var milestoneCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a milestone",
	Long: `Create a milestone and write its markdown file under
.roadmap/milestones/. The due date accepts ISO dates and natural
language.

Examples:
  rdm milestone create "v1.0"
  rdm milestone create "Beta freeze" --due "next friday"
  rdm milestone create "GA" --due 2026-11-30 --project rm-p1`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		due, _ := cmd.Flags().GetString("due")
		headline, _ := cmd.Flags().GetString("headline")
		project, _ := cmd.Flags().GetString("project")

		m := &roadmap.Milestone{
			Name:      args[0],
			Headline:  headline,
			ProjectID: project,
		}
		if due != "" {
			t, err := parseDueDate(due, time.Now())
			if err != nil {
				FatalError("%v", err)
			}
			m.DueDate = &t
		}

		if err := store.CreateMilestone(ctx, m); err != nil {
			FatalError("%v", err)
		}

		path := entityPath(config.RoadmapDir(), "milestones", m.ID)
		if err := writeEntityFile(ctx, path, m, ""); err != nil {
			FatalError("writing %s: %v", path, err)
		}

		line := fmt.Sprintf("%s Created %s: %s", ui.RenderPass(ui.IconPass), m.ID, m.Name)
		if m.DueDate != nil {
			line += ui.RenderMuted(fmt.Sprintf(" (due %s)", m.DueDate.Format("2006-01-02")))
		}
		fmt.Println(line)
		fmt.Println(ui.RenderMuted("  " + path))
	},
}

var milestoneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List milestones with progress",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := rootCtx

		milestones, err := store.ListMilestones(ctx)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			encodeJSON(milestones)
			return
		}
		if len(milestones) == 0 {
			fmt.Println(ui.RenderMuted("No milestones found."))
			return
		}
		for _, m := range milestones {
			progress, err := store.MilestoneProgress(ctx, m.ID)
			if err != nil {
				FatalError("%v", err)
			}
			line := fmt.Sprintf("%s  %s", ui.RenderAccent(m.ID), ui.RenderBold(m.Name))
			detail := fmt.Sprintf("%d/%d closed (%.0f%%)",
				progress.ClosedIssues, progress.TotalIssues, progress.Ratio()*100)
			if m.DueDate != nil {
				detail += " · due " + m.DueDate.Format("2006-01-02")
			}
			if m.Status == roadmap.MilestoneClosed {
				detail += " · closed"
			}
			fmt.Printf("%s\n  %s\n", line, ui.RenderMuted(detail))
		}
	},
}

// parseDueDate accepts an ISO date or natural language.
func parseDueDate(input string, now time.Time) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", input); err == nil {
		return t.UTC(), nil
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	res, err := w.Parse(input, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing due date %q: %w", input, err)
	}
	if res == nil {
		return time.Time{}, fmt.Errorf("cannot understand due date %q (try an ISO date like 2026-11-30)", input)
	}
	return res.Time, nil
}

func init() {
	milestoneCreateCmd.Flags().String("due", "", "Due date (ISO or natural language)")
	milestoneCreateCmd.Flags().String("headline", "", "One-line goal statement")
	milestoneCreateCmd.Flags().String("project", "", "Owning project ID")

	milestoneCmd.AddCommand(milestoneCreateCmd)
	milestoneCmd.AddCommand(milestoneListCmd)
	rootCmd.AddCommand(milestoneCmd)
}
