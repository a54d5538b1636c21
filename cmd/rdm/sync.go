package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/untoldecay/roadmap/internal/config"
	"github.com/untoldecay/roadmap/internal/engine"
	"github.com/untoldecay/roadmap/internal/executor"
	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/remote/github"
	"github.com/untoldecay/roadmap/internal/ui"
)

var (
	syncFull        bool
	syncDryRun      bool
	syncWatchMode   bool
	syncBackendFlag string
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Sync the managed tree, the database, and the remote",
	Long: `Run one sync pass: detect changed files under .roadmap/, mirror them
into the database, then reconcile linked entities with the remote
backend. Prints the run report and a classified error summary.

The backend comes from sync_backend in config.yaml; 'git' restricts the
run to the file pass. A full rebuild is forced with --full and happens
automatically when more than the configured fraction of files changed.

Examples:
  rdm sync
  rdm sync --dry-run
  rdm sync --full
  rdm sync --watch
  rdm sync --backend git`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := rootCtx
		roadmapDir := config.RoadmapDir()

		// One sync per project at a time.
		lock := flock.New(filepath.Join(roadmapDir, ".sync.lock"))
		locked, err := lock.TryLock()
		if err != nil {
			FatalError("acquiring sync lock: %v", err)
		}
		if !locked {
			FatalError("another sync is in progress")
		}
		defer func() { _ = lock.Unlock() }()

		backendName := syncBackendFlag
		if backendName == "" {
			backendName = config.GetString("sync_backend")
		}
		backend := buildBackend(backendName)

		eng, err := engine.New(store, backend, engineConfig(roadmapDir))
		if err != nil {
			FatalError("%v", err)
		}
		opts := engine.Options{FullRebuild: syncFull, DryRun: syncDryRun}

		if syncWatchMode {
			fmt.Printf("→ Watching %s (Ctrl-C to stop)\n", roadmapDir)
			err := eng.Watch(ctx, opts, func(stats *engine.RunStats, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "Warning: sync failed: %v\n", err)
					return
				}
				printRunStats(stats)
			})
			if err != nil {
				FatalError("%v", err)
			}
			return
		}

		stats, err := eng.Run(ctx, opts)
		if err != nil {
			FatalError("%v", err)
		}
		printRunStats(stats)
		if stats.HasFailures() {
			os.Exit(exitError)
		}
	},
}

// buildBackend constructs the remote client, or nil for file-only runs.
// A github backend without owner, repo, and token degrades to file-only
// with a warning rather than failing the run.
func buildBackend(name string) remote.Backend {
	switch name {
	case "git", "":
		return nil
	case "github":
		owner := config.GetString("github.owner")
		repo := config.GetString("github.repo")
		if owner == "" || repo == "" {
			fmt.Fprintln(os.Stderr, "Warning: github.owner and github.repo are not configured; running file-only")
			return nil
		}
		token := config.Token()
		if token == "" {
			fmt.Fprintln(os.Stderr, "Warning: GITHUB_TOKEN is not set; running file-only")
			return nil
		}
		client := github.NewClient(token, owner, repo)
		if apiURL := config.GetString("github.api_url"); apiURL != "" {
			client = client.WithBaseURL(apiURL)
		}
		return client
	default:
		FatalError("unknown sync backend %q (want github or git)", name)
		return nil
	}
}

// engineConfig assembles the engine configuration from config keys.
func engineConfig(roadmapDir string) engine.Config {
	cfg := engine.DefaultConfig(roadmapDir)
	cfg.RebuildThreshold = config.GetFloat64("sync.rebuild_threshold")
	cfg.AutoResolveThreshold = config.GetFloat64("sync.auto_resolve_threshold")
	cfg.Detector.EnableFuzzyMatching = config.GetBool("dedup.enable_fuzzy_matching")
	cfg.Detector.EnableContentMatching = config.GetBool("dedup.enable_content_matching")
	cfg.Detector.TitleSimilarityThreshold = config.GetFloat64("dedup.title_similarity_threshold")
	cfg.Detector.ContentSimilarityThreshold = config.GetFloat64("dedup.content_similarity_threshold")
	cfg.Detector.AutoResolveThreshold = cfg.AutoResolveThreshold
	return cfg
}

func printRunStats(stats *engine.RunStats) {
	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(stats); err != nil {
			FatalError("encoding stats: %v", err)
		}
		return
	}
	fmt.Println()
	fmt.Println(ui.RenderSyncReport(syncViewModel(stats), ui.GetWidth()))
}

// syncViewModel flattens engine stats into the render model.
func syncViewModel(stats *engine.RunStats) ui.SyncViewModel {
	vm := ui.SyncViewModel{DryRun: syncDryRun}
	if f := stats.Files; f != nil {
		vm.Mode = string(f.Mode)
		vm.Reason = f.Reason
		vm.Duration = f.Duration
		vm.FilesChecked = f.FilesChecked
		vm.FilesProcessed = f.FilesProcessed
		vm.FilesChanged = f.FilesChanged
		vm.FilesSynced = f.FilesSynced
		vm.FilesFailed = f.FilesFailed
		vm.FileErrors = f.Errors
	}
	if r := stats.Remote; r != nil {
		vm.Backend = r.Backend
		vm.Pushed = r.Pushed
		vm.Pulled = r.Pulled
		vm.Linked = r.Linked
		vm.UpdatedRemote = r.UpdatedRemote
		vm.UpdatedLocal = r.UpdatedLocal
		vm.Duration += r.Duration
		for _, c := range r.Conflicts {
			vm.Conflicts = append(vm.Conflicts, describeConflict(c))
		}
		if r.Err != nil {
			vm.RemoteError = fmt.Sprintf("%s: %s", r.Err.Category, r.Err.Message)
		}
	}
	for _, s := range stats.Summary {
		row := ui.ErrorCategoryRow{
			Category:     string(s.Category),
			Count:        s.Count,
			Recoverable:  s.Recoverable,
			SuggestedFix: s.SuggestedFix,
		}
		if len(s.Samples) > 0 {
			row.Example = s.Samples[0]
		}
		vm.Categories = append(vm.Categories, row)
	}
	return vm
}

func describeConflict(c executor.SyncConflict) string {
	return fmt.Sprintf("%s %s / remote %s: local %q (%s) vs remote %q (%s)",
		c.EntityType, c.Local.ID, c.Remote.ID,
		c.Local.Title, c.Local.Status, c.Remote.Title, c.Remote.Status)
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "Force a full rebuild of the database from the files")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Report what would change without writing anywhere")
	syncCmd.Flags().BoolVarP(&syncWatchMode, "watch", "w", false, "Keep running and re-sync on file changes")
	syncCmd.Flags().StringVar(&syncBackendFlag, "backend", "", "Sync backend for this run: github or git (file-only)")
	rootCmd.AddCommand(syncCmd)
}
