package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/untoldecay/roadmap/internal/config"
	"github.com/untoldecay/roadmap/internal/storage"
	"github.com/untoldecay/roadmap/internal/ui"
	"github.com/untoldecay/roadmap/internal/utils"
)

var depsCmd = &cobra.Command{
	Use:     "deps",
	GroupID: "deps",
	Short:   "Manage issue dependencies",
}

var depsAddCmd = &cobra.Command{
	Use:   "add <issue> <depends-on>",
	Short: "Record that an issue depends on another",
	Long: `Record that the first issue depends on the second. The edge is
rejected when it would close a cycle; adding an existing edge is a
no-op.

Examples:
  rdm deps add rm-12 rm-3`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		issueID, dependsOnID := args[0], args[1]

		if issueID == dependsOnID {
			FatalError("issue %s cannot depend on itself", issueID)
		}

		issue, err := store.GetIssue(ctx, issueID)
		if err != nil {
			FatalError("%v", err)
		}
		if issue == nil {
			fatalUnknownIssue(ctx, issueID)
		}
		dep, err := store.GetIssue(ctx, dependsOnID)
		if err != nil {
			FatalError("%v", err)
		}
		if dep == nil {
			fatalUnknownIssue(ctx, dependsOnID)
		}

		if slices.Contains(issue.DependsOn, dependsOnID) {
			fmt.Printf("%s %s already depends on %s\n", ui.RenderPass(ui.IconPass), issueID, dependsOnID)
			return
		}

		graph, err := store.GetDependencyGraph(ctx)
		if err != nil {
			FatalError("%v", err)
		}
		if path := dependencyPath(graph, dependsOnID, issueID); path != nil {
			cycle := append([]string{issueID}, path...)
			FatalError("dependency would create a cycle: %s", strings.Join(cycle, " → "))
		}

		if err := store.AddDependency(ctx, issueID, dependsOnID); err != nil {
			FatalError("%v", err)
		}

		// Keep the markdown authoritative so a full rebuild retains
		// the edge.
		fresh, err := store.GetIssue(ctx, issueID)
		if err != nil {
			FatalError("%v", err)
		}
		path := findEntityFile(config.RoadmapDir(), "issues", issueID)
		if path == "" {
			path = entityPath(config.RoadmapDir(), "issues", issueID)
		}
		if err := writeEntityFile(ctx, path, fresh, fresh.Content); err != nil {
			FatalError("updating %s: %v", path, err)
		}

		fmt.Printf("%s %s now depends on %s\n", ui.RenderPass(ui.IconPass), issueID, dependsOnID)
	},
}

var depsTreeCmd = &cobra.Command{
	Use:   "tree <issue>",
	Short: "Show an issue's dependency tree",
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

		graph, err := store.GetDependencyGraph(ctx)
		if err != nil {
			FatalError("%v", err)
		}
		titles, err := issueTitles(ctx)
		if err != nil {
			FatalError("%v", err)
		}

		fmt.Println(ui.RenderDependencyTree(buildDepNode(issue.ID, graph, titles, map[string]bool{})))
	},
}

// dependencyPath returns a directed path between two issues over the
// dependency graph, nil when none exists.
func dependencyPath(graph map[string][]string, from, to string) []string {
	seen := map[string]bool{}
	var dfs func(node string, trail []string) []string
	dfs = func(node string, trail []string) []string {
		trail = append(trail, node)
		if node == to {
			return trail
		}
		seen[node] = true
		for _, next := range graph[node] {
			if seen[next] {
				continue
			}
			if found := dfs(next, trail); found != nil {
				return found
			}
		}
		return nil
	}
	return dfs(from, nil)
}

// buildDepNode expands an issue's dependencies into a render tree.
// Nodes already on the current path are marked as cycles and not
// expanded further.
func buildDepNode(id string, graph map[string][]string, titles map[string]string, onPath map[string]bool) *ui.DependencyNode {
	node := &ui.DependencyNode{ID: id, Title: titles[id]}
	if onPath[id] {
		node.Cycle = true
		return node
	}
	onPath[id] = true
	for _, dep := range graph[id] {
		node.Children = append(node.Children, buildDepNode(dep, graph, titles, onPath))
	}
	delete(onPath, id)
	return node
}

func issueTitles(ctx context.Context) (map[string]string, error) {
	issues, err := store.ListIssues(ctx, storage.IssueFilter{})
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(issues))
	for _, is := range issues {
		titles[is.ID] = is.Title
	}
	return titles, nil
}

// fatalUnknownIssue exits with the closest known ID as a hint.
func fatalUnknownIssue(ctx context.Context, id string) {
	if issues, err := store.ListIssues(ctx, storage.IssueFilter{}); err == nil {
		ids := make([]string, 0, len(issues))
		for _, is := range issues {
			ids = append(ids, is.ID)
		}
		if closest := utils.ClosestMatch(id, ids, 3); closest != "" {
			FatalErrorWithHint("issue %s not found", fmt.Sprintf("did you mean %s?", closest), id)
		}
	}
	FatalError("issue %s not found", id)
}

func init() {
	depsCmd.AddCommand(depsAddCmd)
	depsCmd.AddCommand(depsTreeCmd)
	rootCmd.AddCommand(depsCmd)
}
