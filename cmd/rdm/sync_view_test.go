package main

import (
	"strings"
	"testing"
	"time"

	"github.com/untoldecay/roadmap/internal/engine"
	"github.com/untoldecay/roadmap/internal/errclass"
	"github.com/untoldecay/roadmap/internal/executor"
	"github.com/untoldecay/roadmap/internal/result"
)

func TestSyncViewModel(t *testing.T) {
	stats := &engine.RunStats{
		Files: &engine.FileStats{
			Mode:           engine.ModeIncremental,
			Reason:         "3 changed",
			FilesChecked:   10,
			FilesProcessed: 3,
			FilesChanged:   3,
			FilesSynced:    2,
			FilesFailed:    1,
			Errors:         map[string]string{"issues/rm-9.md": "bad frontmatter"},
			Duration:       200 * time.Millisecond,
		},
		Remote: &executor.SyncReport{
			Backend:       "github",
			Pushed:        []string{"rm-1"},
			Pulled:        []string{"rm-2"},
			Linked:        []string{"rm-3"},
			UpdatedRemote: []string{"rm-4"},
			UpdatedLocal:  []string{"rm-5"},
			Conflicts: []executor.SyncConflict{{
				EntityType: "issue",
				Local:      executor.ConflictSide{ID: "rm-6", Title: "Local title", Status: "todo"},
				Remote:     executor.ConflictSide{ID: "77", Title: "Remote title", Status: "open"},
			}},
			Err: &result.SyncError{
				Category: result.CategoryAPIRateLimit,
				Message:  "rate limited",
			},
			Duration: 300 * time.Millisecond,
		},
		Summary: []errclass.CategorySummary{{
			Category:     errclass.CategoryAPIRateLimit,
			Count:        2,
			Recoverable:  true,
			SuggestedFix: "wait and retry",
			Samples:      []string{"rate limited"},
		}},
	}

	vm := syncViewModel(stats)

	if vm.Mode != "incremental" || vm.Reason != "3 changed" {
		t.Errorf("mode/reason = %q/%q", vm.Mode, vm.Reason)
	}
	if vm.FilesChecked != 10 || vm.FilesSynced != 2 || vm.FilesFailed != 1 {
		t.Errorf("file counters not carried over: %+v", vm)
	}
	if vm.FileErrors["issues/rm-9.md"] != "bad frontmatter" {
		t.Errorf("file errors not carried over: %v", vm.FileErrors)
	}
	if vm.Backend != "github" {
		t.Errorf("backend = %q", vm.Backend)
	}
	if len(vm.Pushed) != 1 || len(vm.Pulled) != 1 || len(vm.Linked) != 1 ||
		len(vm.UpdatedRemote) != 1 || len(vm.UpdatedLocal) != 1 {
		t.Errorf("outcome lists not carried over: %+v", vm)
	}
	if vm.Duration != 500*time.Millisecond {
		t.Errorf("duration should sum both passes, got %v", vm.Duration)
	}
	if len(vm.Conflicts) != 1 || !strings.Contains(vm.Conflicts[0], "rm-6") {
		t.Errorf("conflicts = %v", vm.Conflicts)
	}
	if !strings.Contains(vm.RemoteError, "api_rate_limit") ||
		!strings.Contains(vm.RemoteError, "rate limited") {
		t.Errorf("remote error = %q", vm.RemoteError)
	}
	if len(vm.Categories) != 1 {
		t.Fatalf("categories = %+v", vm.Categories)
	}
	row := vm.Categories[0]
	if row.Count != 2 || !row.Recoverable || row.Example != "rate limited" || row.SuggestedFix != "wait and retry" {
		t.Errorf("category row = %+v", row)
	}
}

func TestSyncViewModelEmptyRun(t *testing.T) {
	vm := syncViewModel(&engine.RunStats{})
	if vm.Mode != "" || vm.Backend != "" || len(vm.Categories) != 0 {
		t.Fatalf("empty stats should map to an empty view model: %+v", vm)
	}
}

func TestDescribeConflict(t *testing.T) {
	c := executor.SyncConflict{
		EntityType: "issue",
		Local:      executor.ConflictSide{ID: "rm-6", Title: "Fix auth", Status: "in-progress"},
		Remote:     executor.ConflictSide{ID: "77", Title: "Fix authn", Status: "open"},
	}
	got := describeConflict(c)
	for _, want := range []string{"issue rm-6", "remote 77", `"Fix auth"`, `"Fix authn"`, "in-progress", "open"} {
		if !strings.Contains(got, want) {
			t.Errorf("describeConflict() = %q, missing %q", got, want)
		}
	}
}
