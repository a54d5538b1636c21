// Package engine orchestrates a sync run: it decides between an
// incremental file pass and a full rebuild, moves managed markdown
// files into the store, and drives the remote reconciliation pipeline
// (detector, resolver, executor, classifier) when a backend is
// configured.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/untoldecay/roadmap/internal/debug"
	"github.com/untoldecay/roadmap/internal/dedup"
	"github.com/untoldecay/roadmap/internal/errclass"
	"github.com/untoldecay/roadmap/internal/executor"
	"github.com/untoldecay/roadmap/internal/frontmatter"
	"github.com/untoldecay/roadmap/internal/gitstate"
	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/resolver"
	"github.com/untoldecay/roadmap/internal/storage"
)

// Mode names the two file-pass strategies.
type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFullRebuild Mode = "full_rebuild"
)

// Sync-state keys the engine owns.
const (
	KeyLastIncrementalSync = "last_incremental_sync"
	KeyLastFullRebuild     = "last_full_rebuild"

	// keyLastRemoteSync is suffixed with the backend name.
	keyLastRemoteSync = "last_remote_sync:"
)

// kindDirs is the managed-tree walk order. Projects come first so
// milestones can reference them, milestones before issues for the same
// reason.
var kindDirs = []string{"projects", "milestones", "issues"}

// DefaultRebuildThreshold is the changed-file ratio above which an
// incremental pass is abandoned for a full rebuild.
const DefaultRebuildThreshold = 0.5

// Config tunes one engine instance.
type Config struct {
	// RoadmapDir is the root of the managed tree (the directory
	// holding projects/, milestones/, issues/).
	RoadmapDir string

	// RebuildThreshold is a fraction in [0,1]. At 0 every run
	// rebuilds; at or above 1 only a fully changed tree does.
	RebuildThreshold float64

	// Detector configures duplicate detection for the remote phase.
	Detector dedup.Config

	// AutoResolveThreshold is the resolver's unattended-link bar.
	AutoResolveThreshold float64

	// Executor carries the retry and breaker policy.
	Executor executor.Config
}

// DefaultConfig returns the stock engine configuration for a managed
// tree.
func DefaultConfig(roadmapDir string) Config {
	return Config{
		RoadmapDir:           roadmapDir,
		RebuildThreshold:     DefaultRebuildThreshold,
		Detector:             dedup.DefaultConfig(),
		AutoResolveThreshold: resolver.DefaultAutoResolveThreshold,
		Executor:             executor.DefaultConfig(),
	}
}

// Options select per-run behavior.
type Options struct {
	// FullRebuild forces the rebuild path regardless of the ratio.
	FullRebuild bool

	// DryRun reports what would change without writing anywhere.
	DryRun bool

	// SkipRemote restricts the run to the file pass even when a
	// backend is configured.
	SkipRemote bool
}

// FileStats counts the file pass. FilesChecked is the incremental
// counter; FilesProcessed its full-rebuild equivalent.
type FileStats struct {
	Mode           Mode              `json:"mode"`
	Reason         string            `json:"reason,omitempty"`
	FilesChecked   int               `json:"files_checked,omitempty"`
	FilesProcessed int               `json:"files_processed,omitempty"`
	FilesChanged   int               `json:"files_changed"`
	FilesSynced    int               `json:"files_synced"`
	FilesFailed    int               `json:"files_failed"`
	Errors         map[string]string `json:"errors,omitempty"`
	Duration       time.Duration     `json:"duration"`
}

// RunStats is the outcome of one engine run.
type RunStats struct {
	Files   *FileStats                 `json:"files"`
	Remote  *executor.SyncReport       `json:"remote,omitempty"`
	Summary []errclass.CategorySummary `json:"summary,omitempty"`
}

// HasFailures reports whether anything in the run failed.
func (r *RunStats) HasFailures() bool {
	if r.Files != nil && r.Files.FilesFailed > 0 {
		return true
	}
	return r.Remote != nil && r.Remote.HasFailures()
}

// Engine drives sync runs against one store and at most one backend.
type Engine struct {
	store   storage.Store
	backend remote.Backend // nil for file-only sync
	monitor *gitstate.Monitor
	cfg     Config
	now     func() time.Time
}

// New builds an engine. A nil backend limits runs to the file pass.
func New(store storage.Store, backend remote.Backend, cfg Config) (*Engine, error) {
	if cfg.RoadmapDir == "" {
		return nil, fmt.Errorf("engine config has no roadmap directory")
	}
	return &Engine{
		store:   store,
		backend: backend,
		monitor: gitstate.NewMonitor(cfg.RoadmapDir, store),
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// Run performs one sync: safety probe, file pass, then remote
// reconciliation. Per-file and per-entity failures land in the stats;
// the returned error is reserved for conditions that stop the run
// before it can produce them.
func (e *Engine) Run(ctx context.Context, opts Options) (*RunStats, error) {
	if ok, reason := e.store.IsSafeForWrites(ctx); !ok {
		return nil, fmt.Errorf("refusing to sync: %s", reason)
	}

	mode, reason := e.decideMode(ctx, opts)
	debug.Logf("engine: %s pass (%s)", mode, reason)

	stats := &FileStats{Mode: mode, Reason: reason, Errors: map[string]string{}}
	if err := e.runFilePass(ctx, mode, opts, stats); err != nil {
		return nil, err
	}

	run := &RunStats{Files: stats}
	if e.backend != nil && !opts.SkipRemote {
		run.Remote = e.reconcileRemote(ctx, opts)
	}

	if !opts.DryRun {
		if err := e.monitor.MarkSynced(ctx); err != nil {
			debug.Logf("engine: recording sync marker: %v", err)
		}
	}

	run.Summary = e.summarize(run)
	return run, nil
}

// runFilePass dispatches the chosen pass and folds pass-level panics
// and errors into the counters. Only context cancellation escapes; a
// broken pass still yields stats for what it got through.
func (e *Engine) runFilePass(ctx context.Context, mode Mode, opts Options, stats *FileStats) (err error) {
	start := e.now()
	defer func() {
		stats.Duration = e.now().Sub(start)
		if r := recover(); r != nil {
			stats.FilesFailed++
			stats.Errors["(pass)"] = fmt.Sprintf("panic: %v", r)
			err = nil
		}
	}()

	if mode == ModeFullRebuild {
		err = e.fullRebuild(ctx, opts, stats)
	} else {
		err = e.incrementalSync(ctx, opts, stats)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		stats.FilesFailed++
		stats.Errors["(pass)"] = err.Error()
	}
	return nil
}

// decideMode picks incremental or full rebuild: forced, first run, or
// changed-file ratio at or above the threshold.
func (e *Engine) decideMode(ctx context.Context, opts Options) (Mode, string) {
	if opts.FullRebuild {
		return ModeFullRebuild, "forced"
	}
	marker, err := e.store.GetSyncState(ctx, KeyLastIncrementalSync)
	if err != nil || marker == "" {
		return ModeFullRebuild, "no prior sync"
	}

	paths, err := e.walkManaged()
	if err != nil || len(paths) == 0 {
		return ModeIncremental, "no managed files"
	}
	changed := 0
	for _, path := range paths {
		isChanged, err := e.store.HasFileChanged(ctx, path)
		if err == nil && isChanged {
			changed++
		}
	}
	ratio := float64(changed) / float64(len(paths))
	if ratio >= e.cfg.RebuildThreshold {
		return ModeFullRebuild, fmt.Sprintf("%d of %d files changed", changed, len(paths))
	}
	return ModeIncremental, fmt.Sprintf("%d of %d files changed", changed, len(paths))
}

// walkManaged lists every managed markdown file in kind order:
// projects, then milestones, then issues. The archive directory is
// not managed.
func (e *Engine) walkManaged() ([]string, error) {
	var paths []string
	for _, dir := range kindDirs {
		root := filepath.Join(e.cfg.RoadmapDir, dir)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		var batch []string
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".md") {
				return nil
			}
			batch = append(batch, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
		sort.Strings(batch)
		paths = append(paths, batch...)
	}
	return paths, nil
}

// incrementalSync visits every managed file, skipping those whose
// content hash matches the recorded sync state. One bad file is
// recorded and skipped, never fatal.
func (e *Engine) incrementalSync(ctx context.Context, opts Options, stats *FileStats) error {
	start := e.now()

	paths, err := e.walkManaged()
	if err != nil {
		return err
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.FilesChecked++
		changed, err := e.store.HasFileChanged(ctx, path)
		if err != nil {
			stats.FilesFailed++
			stats.Errors[e.rel(path)] = err.Error()
			continue
		}
		if !changed {
			continue
		}
		stats.FilesChanged++
		if opts.DryRun {
			continue
		}
		if err := e.syncFile(ctx, path); err != nil {
			stats.FilesFailed++
			stats.Errors[e.rel(path)] = err.Error()
			continue
		}
		stats.FilesSynced++
	}

	if !opts.DryRun {
		e.removeDeleted(ctx, stats)
		if err := e.store.SetSyncState(ctx, KeyLastIncrementalSync, start.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("recording sync marker: %w", err)
		}
	}
	return nil
}

// fullRebuild reparses the whole tree. Issue rows and file sync state
// are dropped and rebuilt inside one transaction; projects and
// milestones are upserted in place so their IDs survive.
func (e *Engine) fullRebuild(ctx context.Context, opts Options, stats *FileStats) error {
	start := e.now()

	paths, err := e.walkManaged()
	if err != nil {
		return err
	}

	var files []*frontmatter.File
	for _, path := range paths {
		stats.FilesProcessed++
		if opts.DryRun {
			stats.FilesChanged++
			continue
		}
		f, err := frontmatter.Parse(path)
		if err != nil {
			stats.FilesFailed++
			stats.Errors[e.rel(path)] = err.Error()
			continue
		}
		files = append(files, f)
	}
	if opts.DryRun {
		return nil
	}

	var minted []*frontmatter.File
	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.ClearFileSyncState(ctx); err != nil {
			return err
		}
		if err := tx.DeleteAllIssues(ctx); err != nil {
			return err
		}

		// First pass creates entities with issue dependencies held
		// back; targets may appear later in the walk.
		type deferred struct {
			issueID string
			deps    []string
			path    string
		}
		var pending []deferred
		synced := make([]*frontmatter.File, 0, len(files))

		for _, f := range files {
			var deps []string
			if f.Issue != nil {
				deps = f.Issue.DependsOn
				f.Issue.DependsOn = nil
			}
			hadID := entityID(f) != ""
			if err := upsertEntity(ctx, tx, f, e.now()); err != nil {
				stats.FilesFailed++
				stats.Errors[e.rel(f.Path)] = err.Error()
				continue
			}
			if !hadID {
				minted = append(minted, f)
			}
			if f.Issue != nil && len(deps) > 0 {
				pending = append(pending, deferred{issueID: f.Issue.ID, deps: deps, path: f.Path})
				f.Issue.DependsOn = deps
			}
			synced = append(synced, f)
		}

		for _, p := range pending {
			if err := tx.ReplaceDependencies(ctx, p.issueID, p.deps); err != nil {
				stats.FilesFailed++
				stats.Errors[e.rel(p.path)] = err.Error()
			}
		}

		for _, f := range synced {
			hash, err := frontmatter.Hash(f.Path)
			if err != nil {
				continue
			}
			if err := tx.UpsertFileSyncState(ctx, f.Path, hash); err != nil {
				return err
			}
			stats.FilesChanged++
			stats.FilesSynced++
		}

		now := start.UTC().Format(time.RFC3339)
		if err := tx.SetSyncState(ctx, KeyLastFullRebuild, now); err != nil {
			return err
		}
		// A rebuild is also a sync point; the next run goes back to
		// incremental.
		return tx.SetSyncState(ctx, KeyLastIncrementalSync, now)
	})
	if err != nil {
		return fmt.Errorf("rebuilding store: %w", err)
	}

	for _, f := range minted {
		if err := e.rewriteFile(ctx, f); err != nil {
			stats.Errors[e.rel(f.Path)] = err.Error()
		}
	}
	return nil
}

// syncFile moves one parsed file into the store and records its hash.
// A file whose entity has no ID yet is rewritten so the minted ID
// sticks.
func (e *Engine) syncFile(ctx context.Context, path string) error {
	f, err := frontmatter.Parse(path)
	if err != nil {
		return err
	}
	hadID := entityID(f) != ""

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return upsertEntity(ctx, tx, f, e.now())
	})
	if err != nil {
		return err
	}

	if !hadID {
		if err := e.rewriteFile(ctx, f); err != nil {
			return err
		}
		return nil // rewriteFile records the fresh hash
	}

	hash, err := frontmatter.Hash(path)
	if err != nil {
		return err
	}
	return e.store.UpsertFileSyncState(ctx, path, hash)
}

// removeDeleted drops entities whose files were deleted since the last
// synced commit. Without a git checkout this is a no-op.
func (e *Engine) removeDeleted(ctx context.Context, stats *FileStats) {
	changes, err := e.monitor.DetectChanges(ctx)
	if err != nil {
		debug.Logf("engine: change detection unavailable: %v", err)
		return
	}
	for rel, ct := range changes {
		if ct != gitstate.ChangeDeleted {
			continue
		}
		id := strings.TrimSuffix(filepath.Base(rel), ".md")
		var err error
		switch {
		case strings.HasPrefix(rel, "issues/"):
			err = e.store.DeleteIssue(ctx, id)
		case strings.HasPrefix(rel, "milestones/"):
			err = e.store.DeleteMilestone(ctx, id)
		case strings.HasPrefix(rel, "projects/"):
			err = e.store.DeleteProject(ctx, id)
		default:
			continue
		}
		if err != nil {
			stats.FilesFailed++
			stats.Errors[rel] = err.Error()
			continue
		}
		debug.Logf("engine: removed %s for deleted file %s", id, rel)
	}
}

// rewriteFile renders the entity back to its file, keeping store and
// tree in step after an ID mint or a pulled change.
func (e *Engine) rewriteFile(ctx context.Context, f *frontmatter.File) error {
	var (
		data []byte
		err  error
	)
	switch {
	case f.Issue != nil:
		data, err = frontmatter.Marshal(f.Issue, f.Issue.Content)
	case f.Milestone != nil:
		data, err = frontmatter.Marshal(f.Milestone, f.Body)
	case f.Project != nil:
		data, err = frontmatter.Marshal(f.Project, f.Body)
	default:
		return fmt.Errorf("file %s has no entity", f.Path)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.Path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", f.Path, err)
	}
	hash, err := frontmatter.Hash(f.Path)
	if err != nil {
		return err
	}
	return e.store.UpsertFileSyncState(ctx, f.Path, hash)
}

func (e *Engine) rel(path string) string {
	if rel, err := filepath.Rel(e.cfg.RoadmapDir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// entityID returns the parsed entity's ID, "" when unset.
func entityID(f *frontmatter.File) string {
	switch {
	case f.Issue != nil:
		return f.Issue.ID
	case f.Milestone != nil:
		return f.Milestone.ID
	case f.Project != nil:
		return f.Project.ID
	}
	return ""
}

// upsertEntity updates the entity in place, falling back to create
// when no row has its ID. Create mints an ID for entities that lack
// one.
func upsertEntity(ctx context.Context, tx storage.Transaction, f *frontmatter.File, now time.Time) error {
	switch {
	case f.Project != nil:
		p := f.Project
		if p.ID != "" {
			ok, err := tx.UpdateProject(ctx, p)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
		return tx.CreateProject(ctx, p)

	case f.Milestone != nil:
		m := f.Milestone
		if m.ID != "" {
			ok, err := tx.UpdateMilestone(ctx, m)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
		return tx.CreateMilestone(ctx, m)

	case f.Issue != nil:
		issue := f.Issue
		if issue.ID != "" {
			ok, err := tx.UpdateIssue(ctx, issue)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
		return tx.CreateIssue(ctx, issue)
	}
	return fmt.Errorf("file %s has no entity", f.Path)
}

// summarize folds every failure in the run through the error
// classifier.
func (e *Engine) summarize(run *RunStats) []errclass.CategorySummary {
	cls := errclass.New()
	if run.Files != nil {
		for path, msg := range run.Files.Errors {
			cls.Classify(msg, "", "file", path)
		}
	}
	if run.Remote != nil {
		for _, serr := range run.Remote.Failures {
			cls.Classify(serr.Error(), string(serr.Category), serr.EntityType, serr.EntityID)
		}
		if run.Remote.Err != nil {
			cls.Classify(run.Remote.Err.Error(), string(run.Remote.Err.Category), "", "")
		}
	}
	if cls.Total() == 0 {
		return nil
	}
	return cls.Summary()
}
