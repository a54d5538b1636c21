package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/untoldecay/roadmap/internal/config"
	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/remote/github"
	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/storage"
	"github.com/untoldecay/roadmap/internal/ui"
	"github.com/untoldecay/roadmap/internal/utils"
)

var issueCmd = &cobra.Command{
	Use:     "issue",
	GroupID: "issues",
	Short:   "Create, list, and inspect issues",
}

var issueCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an issue",
	Long: `Create an issue: mint an ID, store it, and write its markdown file
under .roadmap/issues/.

Examples:
  rdm issue create "Fix login timeout"
  rdm issue create "Ship exporter" -m "See the Q3 plan." --priority high
  rdm issue create "Index rebuild" --milestone rm-m1 --label perf --label db`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		content, _ := cmd.Flags().GetString("content")
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		assignee, _ := cmd.Flags().GetString("assignee")
		milestone, _ := cmd.Flags().GetString("milestone")
		labels, _ := cmd.Flags().GetStringSlice("label")

		issue := &roadmap.Issue{
			Title:     args[0],
			Content:   content,
			Status:    roadmap.Status(status),
			Priority:  roadmap.Priority(priority),
			Assignee:  assignee,
			Milestone: milestone,
			Labels:    labels,
		}
		if err := store.CreateIssue(ctx, issue); err != nil {
			FatalError("%v", err)
		}

		path := entityPath(config.RoadmapDir(), "issues", issue.ID)
		if err := writeEntityFile(ctx, path, issue, issue.Content); err != nil {
			FatalError("writing %s: %v", path, err)
		}

		fmt.Printf("%s Created %s: %s\n", ui.RenderPass(ui.IconPass), issue.ID, issue.Title)
		fmt.Println(ui.RenderMuted("  " + path))
	},
}

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := rootCtx

		status, _ := cmd.Flags().GetString("status")
		milestone, _ := cmd.Flags().GetString("milestone")
		assignee, _ := cmd.Flags().GetString("assignee")
		label, _ := cmd.Flags().GetString("label")
		limit, _ := cmd.Flags().GetInt("limit")

		issues, err := store.ListIssues(ctx, storage.IssueFilter{
			Status:      roadmap.Status(status),
			MilestoneID: milestone,
			Assignee:    assignee,
			Label:       label,
			Limit:       limit,
		})
		if err != nil {
			FatalError("%v", err)
		}

		if jsonOutput {
			encodeJSON(issues)
			return
		}
		if len(issues) == 0 {
			fmt.Println(ui.RenderMuted("No issues found."))
			return
		}
		rows := make([][]string, 0, len(issues))
		for _, is := range issues {
			rows = append(rows, []string{is.ID, string(is.Status), is.Title})
		}
		fmt.Println(ui.RenderIssueTable(rows, ui.GetWidth()))
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%d issue(s)", len(issues))))
	},
}

var issueViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show one issue in full",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		issue, err := store.GetIssue(ctx, args[0])
		if err != nil {
			FatalError("%v", err)
		}
		if issue == nil {
			fatalUnknownIssue(ctx, args[0])
		}

		if jsonOutput {
			encodeJSON(issue)
			return
		}
		comments, err := store.GetComments(ctx, issue.ID)
		if err != nil {
			FatalError("%v", err)
		}
		printIssue(issue, comments)
	},
}

var issueLinkGithubCmd = &cobra.Command{
	Use:   "link-github <id> <number>",
	Short: "Link a local issue to an existing GitHub issue",
	Long: `Link a local issue to a GitHub issue number. The remote issue must
exist; the pair is recorded in remote_links and in the issue's
frontmatter, and sync treats them as the same entity from then on.

Examples:
  rdm issue link-github rm-12 431`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		localID, number := args[0], args[1]

		issue, err := store.GetIssue(ctx, localID)
		if err != nil {
			FatalError("%v", err)
		}
		if issue == nil {
			fatalUnknownIssue(ctx, localID)
		}

		if existing, err := store.GetRemoteLink(ctx, localID, "github"); err != nil {
			FatalError("%v", err)
		} else if existing != "" {
			FatalError("%s is already linked to github #%s", localID, existing)
		}
		if other, err := store.FindLocalByRemote(ctx, "github", number); err != nil {
			FatalError("%v", err)
		} else if other != "" {
			FatalError("github #%s is already linked to %s", number, other)
		}

		backend := requireGitHub()
		res := backend.GetIssue(ctx, number)
		if res.IsErr() {
			serr := res.UnwrapErr()
			FatalError("fetching github #%s: %s", number, serr.Message)
		}
		remoteIssue := res.Unwrap()

		err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			if err := tx.SetRemoteLink(ctx, localID, "github", number); err != nil {
				return err
			}
			issue.SetRemoteID("github", number)
			issue.SetLastSynced(time.Now().UTC())
			_, err := tx.UpdateIssue(ctx, issue)
			return err
		})
		if err != nil {
			FatalError("%v", err)
		}

		path := findEntityFile(config.RoadmapDir(), "issues", localID)
		if path == "" {
			path = entityPath(config.RoadmapDir(), "issues", localID)
		}
		if err := writeEntityFile(ctx, path, issue, issue.Content); err != nil {
			FatalError("updating %s: %v", path, err)
		}

		fmt.Printf("%s Linked %s to github #%s (%s)\n",
			ui.RenderPass(ui.IconPass), localID, number, remoteIssue.Title)
	},
}

var issueLookupGithubCmd = &cobra.Command{
	Use:   "lookup-github <id>",
	Short: "Show the GitHub issue linked to a local one",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		issue, err := store.GetIssue(ctx, args[0])
		if err != nil {
			FatalError("%v", err)
		}
		if issue == nil {
			suggestIssue(ctx, args[0])
			os.Exit(exitError)
		}

		number, err := store.GetRemoteLink(ctx, issue.ID, "github")
		if err != nil {
			FatalError("%v", err)
		}
		if number == "" {
			FatalErrorWithHint("%s is not linked to a github issue",
				fmt.Sprintf("run 'rdm issue link-github %s <number>' or let 'rdm sync' pair it", issue.ID), issue.ID)
		}

		backend := requireGitHub()
		res := backend.GetIssue(ctx, number)
		if res.IsErr() {
			serr := res.UnwrapErr()
			FatalError("fetching github #%s: %s", number, serr.Message)
		}
		remoteIssue := res.Unwrap()

		if jsonOutput {
			encodeJSON(remoteIssue)
			return
		}
		fmt.Printf("\n%s %s\n", ui.RenderAccent("github #"+number), ui.RenderBold(remoteIssue.Title))
		meta := []string{remoteIssue.Status}
		if remoteIssue.Assignee != "" {
			meta = append(meta, "@"+remoteIssue.Assignee)
		}
		if remoteIssue.Milestone != "" {
			meta = append(meta, "milestone: "+remoteIssue.Milestone)
		}
		fmt.Println(ui.RenderMuted(strings.Join(meta, " · ")))
		if len(remoteIssue.Labels) > 0 {
			fmt.Printf("\n%s %s\n", ui.RenderBold("LABELS:"), strings.Join(remoteIssue.Labels, ", "))
		}
		if remoteIssue.Content != "" {
			fmt.Printf("\n%s\n%s\n", ui.RenderBold("BODY"), ui.RenderMarkdown(remoteIssue.Content))
		}
		fmt.Printf("\n%s\n", ui.RenderMuted(fmt.Sprintf("linked to %s · updated %s",
			issue.ID, remoteIssue.Updated.Format("2006-01-02"))))
	},
}

// requireGitHub builds the configured GitHub client or exits.
func requireGitHub() remote.Backend {
	owner := config.GetString("github.owner")
	repo := config.GetString("github.repo")
	if owner == "" || repo == "" {
		FatalErrorWithHint("github backend is not configured",
			"set github.owner and github.repo in .roadmap/config.yaml")
	}
	token := config.Token()
	if token == "" {
		FatalErrorWithHint("no API token available", "export GITHUB_TOKEN")
	}
	client := github.NewClient(token, owner, repo)
	if apiURL := config.GetString("github.api_url"); apiURL != "" {
		client = client.WithBaseURL(apiURL)
	}
	return client
}

// suggestIssue prints close ID and title matches for a failed lookup.
func suggestIssue(ctx context.Context, query string) {
	vm := ui.SuggestViewModel{Query: query, NoResults: true}
	if issues, err := store.ListIssues(ctx, storage.IssueFilter{}); err == nil {
		ids := make([]string, 0, len(issues))
		for _, is := range issues {
			ids = append(ids, is.ID)
		}
		if closest := utils.ClosestMatch(query, ids, 3); closest != "" {
			vm.Corrected = closest
			vm.NoResults = false
		}
		for _, is := range issues {
			if utils.FuzzyMatch(query, is.ID) || utils.FuzzyMatch(query, is.Title) {
				vm.Suggestions = append(vm.Suggestions, fmt.Sprintf("%s  %s", is.ID, is.Title))
				vm.NoResults = false
			}
			if len(vm.Suggestions) >= 5 {
				break
			}
		}
	}
	fmt.Println(ui.RenderSuggestionBox(vm))
}

func printIssue(issue *roadmap.Issue, comments []*roadmap.Comment) {
	fmt.Printf("\n%s %s\n", ui.RenderAccent(issue.ID), ui.RenderBold(issue.Title))

	meta := []string{string(issue.Status)}
	if issue.Priority != "" {
		meta = append(meta, string(issue.Priority))
	}
	if issue.Assignee != "" {
		meta = append(meta, "@"+issue.Assignee)
	}
	if issue.Milestone != "" {
		meta = append(meta, "milestone: "+issue.Milestone)
	}
	fmt.Println(ui.RenderMuted(strings.Join(meta, " · ")))

	if len(issue.Labels) > 0 {
		fmt.Printf("\n%s %s\n", ui.RenderBold("LABELS:"), strings.Join(issue.Labels, ", "))
	}
	if len(issue.DependsOn) > 0 {
		fmt.Printf("\n%s %s\n", ui.RenderBold("DEPENDS ON:"), strings.Join(issue.DependsOn, ", "))
	}
	if len(issue.RemoteIDs) > 0 {
		links := make([]string, 0, len(issue.RemoteIDs))
		for backend, id := range issue.RemoteIDs {
			links = append(links, backend+" #"+id)
		}
		sort.Strings(links)
		fmt.Printf("\n%s %s\n", ui.RenderBold("REMOTE:"), strings.Join(links, ", "))
	}
	if issue.Content != "" {
		fmt.Printf("\n%s\n%s\n", ui.RenderBold("DESCRIPTION"), ui.RenderMarkdown(issue.Content))
	}
	if len(comments) > 0 {
		fmt.Printf("\n%s\n", ui.RenderBold("COMMENTS"))
		for _, c := range comments {
			fmt.Printf("  %s %s\n", ui.RenderMuted(c.Created.Format("2006-01-02")), c.Author)
			fmt.Printf("    %s\n", c.Body)
		}
	}
	fmt.Printf("\n%s\n", ui.RenderMuted(fmt.Sprintf("created %s · updated %s",
		issue.Created.Format("2006-01-02"), issue.Updated.Format("2006-01-02"))))
}

func encodeJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		FatalError("encoding json: %v", err)
	}
}

func init() {
	issueCreateCmd.Flags().StringP("content", "m", "", "Issue body (markdown)")
	issueCreateCmd.Flags().String("status", "", "Status: backlog, todo, in-progress, closed, archived (default backlog)")
	issueCreateCmd.Flags().String("priority", "", "Priority: low, medium, high, critical (default medium)")
	issueCreateCmd.Flags().String("assignee", "", "Assignee")
	issueCreateCmd.Flags().String("milestone", "", "Milestone ID or name")
	issueCreateCmd.Flags().StringSlice("label", nil, "Label (repeatable)")

	issueListCmd.Flags().String("status", "", "Filter by status")
	issueListCmd.Flags().String("milestone", "", "Filter by milestone ID")
	issueListCmd.Flags().String("assignee", "", "Filter by assignee")
	issueListCmd.Flags().String("label", "", "Filter by label")
	issueListCmd.Flags().Int("limit", 0, "Maximum rows (0 = all)")

	issueCmd.AddCommand(issueCreateCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueViewCmd)
	issueCmd.AddCommand(issueLinkGithubCmd)
	issueCmd.AddCommand(issueLookupGithubCmd)
	rootCmd.AddCommand(issueCmd)
}
