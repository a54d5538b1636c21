package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/roadmap/internal/config"
	"github.com/untoldecay/roadmap/internal/debug"
	"github.com/untoldecay/roadmap/internal/storage"
	"github.com/untoldecay/roadmap/internal/storage/sqlite"
)

// Exit codes. 2 is reserved for init against an already-initialized
// project so scripts can treat that as a no-op rather than a failure.
const (
	exitError              = 1
	exitAlreadyInitialized = 2
)

var (
	// rootCtx carries signal cancellation to every command; main sets
	// it before Execute.
	rootCtx context.Context = context.Background()

	// store is opened by PersistentPreRunE for commands that touch the
	// database. init creates it itself; help-style commands skip it.
	store storage.Store

	jsonOutput bool
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "rdm",
	Short: "File-backed issue tracker with bidirectional remote sync",
	Long: `rdm tracks projects, milestones, and issues as markdown files under
.roadmap/, mirrors them into a local SQLite database, and keeps both
in sync with a remote tracker.

Start with 'rdm init', edit the generated markdown, then run 'rdm sync'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
		}
		if debugFlag || config.GetBool("debug") {
			debug.SetEnabled(true)
		}
		if skipsStore(cmd) {
			return nil
		}
		return ensureStoreActive(rootCtx)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		closeStore()
	},
}

// skipsStore reports whether a command runs without the database.
func skipsStore(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "init", "help", "version", "completion",
		cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	return false
}

// ensureStoreActive opens the project database if it is not open yet.
func ensureStoreActive(ctx context.Context) error {
	if store != nil {
		return nil
	}
	roadmapDir := config.RoadmapDir()
	if roadmapDir == "" {
		return fmt.Errorf("not in an rdm workspace (no %s directory found; run 'rdm init')", config.DirName)
	}
	s, err := sqlite.New(ctx, storage.Config{
		Path:       config.DBPath(),
		RoadmapDir: roadmapDir,
		Prefix:     config.GetString("issue_prefix"),
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	store = s
	return nil
}

func closeStore() {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		debug.Logf("root: closing store: %v", err)
	}
	store = nil
}

// FatalError prints a formatted error to stderr and exits 1.
func FatalError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(exitError)
}

// FatalErrorWithHint prints the error plus a remediation hint.
func FatalErrorWithHint(format string, hint string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(exitError)
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.ExecuteContext(rootCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Machine-readable JSON output where supported")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging (also RDM_DEBUG=1)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "setup", Title: "Setup:"},
		&cobra.Group{ID: "issues", Title: "Issues & Milestones:"},
		&cobra.Group{ID: "deps", Title: "Dependencies:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
	)
}
