package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/roadmap/internal/config"
	"github.com/untoldecay/roadmap/internal/dedup"
	"github.com/untoldecay/roadmap/internal/executor"
	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/resolver"
	"github.com/untoldecay/roadmap/internal/storage"
	"github.com/untoldecay/roadmap/internal/ui"
)

var (
	duplicatesAI      bool
	duplicatesResolve bool
)

var duplicatesCmd = &cobra.Command{
	Use:     "duplicates",
	GroupID: "sync",
	Short:   "Detect duplicate issues without syncing",
	Long: `Run the duplicate detector on its own: self-dedup both sides,
cross-match the canonical representatives, and print the scored
matches. Nothing is linked or merged unless --resolve is given.

With --ai, matches recommended for manual review are second-guessed by
a language model (needs ANTHROPIC_API_KEY); its verdicts are advisory.
With --resolve, each match is reviewed interactively with a
merge / keep / skip choice.

Examples:
  rdm duplicates
  rdm duplicates --json
  rdm duplicates --ai
  rdm duplicates --resolve`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := rootCtx
		backendName := config.GetString("sync_backend")
		if backendName == "" || backendName == "git" {
			backendName = "github"
		}

		locals, err := localRecords(ctx, backendName)
		if err != nil {
			FatalError("%v", err)
		}

		var remotes []dedup.Record
		backend := buildBackend(config.GetString("sync_backend"))
		if backend != nil {
			issues, serr := backend.ListIssues(ctx, remote.IssueFilter{}).Get()
			if serr != nil {
				FatalError("listing remote issues: %s", serr.Message)
			}
			for id, ri := range issues {
				remotes = append(remotes, dedup.Record{
					ID:        id,
					Title:     ri.Title,
					Content:   ri.Content,
					RemoteKey: ri.BackendID,
				})
			}
		}

		dcfg := engineConfig(config.RoadmapDir()).Detector
		dcfg.Backend = backendName
		report := dedup.New(dcfg).Detect(locals, remotes)

		// A pair already joined in remote_links is one issue on both
		// sides; reconciliation owns it.
		links, err := store.ListRemoteLinks(ctx, backendName)
		if err != nil {
			FatalError("%v", err)
		}
		matches := report.Matches[:0:0]
		for _, m := range report.Matches {
			if links[m.Local.ID] == m.Remote.ID {
				continue
			}
			matches = append(matches, m)
		}

		verdicts := map[string]dedup.Verdict{}
		if duplicatesAI && len(matches) > 0 {
			verdicts = triageMatches(ctx, matches)
		}

		if jsonOutput {
			encodeJSON(struct {
				LocalStats  dedup.SelfDedupStats `json:"local_stats"`
				RemoteStats dedup.SelfDedupStats `json:"remote_stats"`
				Matches     []dedup.Match        `json:"matches"`
			}{report.LocalStats, report.RemoteStats, matches})
			return
		}

		printDedupStats("local", report.LocalStats)
		if backend != nil {
			printDedupStats("remote", report.RemoteStats)
		}
		if len(matches) == 0 {
			fmt.Println(ui.RenderPass(ui.IconPass + " No duplicate candidates."))
			return
		}

		if !duplicatesResolve {
			for i, m := range matches {
				fmt.Println()
				fmt.Println(ui.RenderMatchComparison(m, i+1, len(matches)))
				if v, ok := verdicts[pairKey(m.Local.ID, m.Remote.ID)]; ok {
					fmt.Println(renderVerdict(v))
				}
			}
			return
		}

		resolveInteractively(ctx, matches, backendName)
	},
}

func localRecords(ctx context.Context, backendName string) ([]dedup.Record, error) {
	issues, err := store.ListIssues(ctx, storage.IssueFilter{})
	if err != nil {
		return nil, err
	}
	records := make([]dedup.Record, 0, len(issues))
	for _, issue := range issues {
		key, _ := issue.RemoteID(backendName)
		records = append(records, dedup.Record{
			ID:        issue.ID,
			Title:     issue.Title,
			Content:   issue.Content,
			RemoteKey: key,
		})
	}
	return records, nil
}

func printDedupStats(side string, stats dedup.SelfDedupStats) {
	if stats.Input == stats.Canonical {
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%s: %d issues, no internal duplicates", side, stats.Input)))
		return
	}
	fmt.Printf("%s: %d issues, %d canonical (%d exact title, %d id collision, %d similar)\n",
		side, stats.Input, stats.Canonical, stats.TitleMatches, stats.IDCollisions, stats.SimilarityMatches)
}

func pairKey(localID, remoteID string) string {
	return localID + "\x00" + remoteID
}

// triageMatches sends the manual-review matches to the model and keys
// the verdicts by pair.
func triageMatches(ctx context.Context, matches []dedup.Match) map[string]dedup.Verdict {
	triage, err := dedup.NewTriage("")
	if err != nil {
		FatalError("%v", err)
	}
	fmt.Println("→ Asking the model about manual-review matches...")
	verdicts, err := triage.Review(ctx, matches)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: AI triage failed: %v\n", err)
		return map[string]dedup.Verdict{}
	}
	byPair := make(map[string]dedup.Verdict, len(verdicts))
	for _, v := range verdicts {
		byPair[pairKey(v.LocalID, v.RemoteID)] = v
	}
	return byPair
}

func renderVerdict(v dedup.Verdict) string {
	line := fmt.Sprintf("model: duplicate=%t (%.2f) %s", v.Duplicate, v.Confidence, v.Reason)
	if v.Duplicate {
		return ui.RenderWarn("  " + line)
	}
	return ui.RenderMuted("  " + line)
}

// resolveInteractively reviews each match with a merge/keep/skip prompt
// and keeps the markdown tree consistent with the merges it performs.
func resolveInteractively(ctx context.Context, matches []dedup.Match, backendName string) {
	// A merge may delete the duplicate's local twin; remember the
	// pairing now so the twin's file can be removed afterwards.
	twins := make(map[string]string, len(matches))
	for _, m := range matches {
		if twin, err := store.FindLocalByRemote(ctx, backendName, m.Remote.ID); err == nil && twin != "" {
			twins[m.Remote.ID] = twin
		}
	}

	res := resolver.New()
	res.AutoResolveThreshold = config.GetFloat64("sync.auto_resolve_threshold")
	res.Merger = executor.NewIssueMerger(store, backendName)

	actions, err := res.Interactive(ctx, matches)
	if err != nil {
		if errors.Is(err, resolver.ErrNotInteractive) {
			FatalError("interactive resolution requires a terminal")
		}
		FatalError("%v", err)
	}

	var merged, kept, skipped int
	for _, a := range actions {
		switch a.Type {
		case resolver.ActionMerge:
			merged++
			syncMergedFiles(ctx, a, twins[a.RemoteID])
		case resolver.ActionKeep:
			kept++
		default:
			skipped++
		}
		if a.Note != "" {
			fmt.Println(ui.RenderMuted(fmt.Sprintf("  %s / %s: %s", a.LocalID, a.RemoteID, a.Note)))
		}
	}
	fmt.Printf("\n%s Resolved: %d merged, %d kept, %d skipped\n", ui.RenderPass(ui.IconPass), merged, kept, skipped)
}

// syncMergedFiles rewrites the canonical issue's file and removes the
// deleted twin's so a full rebuild cannot resurrect the duplicate.
func syncMergedFiles(ctx context.Context, a resolver.Action, twin string) {
	roadmapDir := config.RoadmapDir()
	if a.Canonical != nil {
		path := findEntityFile(roadmapDir, "issues", a.Canonical.ID)
		if path == "" {
			path = entityPath(roadmapDir, "issues", a.Canonical.ID)
		}
		if err := writeEntityFile(ctx, path, a.Canonical, a.Canonical.Content); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: updating %s: %v\n", path, err)
		}
	}
	if twin != "" && twin != a.LocalID {
		if path := findEntityFile(roadmapDir, "issues", twin); path != "" {
			if err := os.Remove(path); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: removing %s: %v\n", path, err)
			}
		}
	}
}

func init() {
	duplicatesCmd.Flags().BoolVar(&duplicatesAI, "ai", false, "Triage manual-review matches with a language model")
	duplicatesCmd.Flags().BoolVar(&duplicatesResolve, "resolve", false, "Review each match interactively")
	rootCmd.AddCommand(duplicatesCmd)
}
