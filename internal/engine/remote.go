package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/untoldecay/roadmap/internal/debug"
	"github.com/untoldecay/roadmap/internal/dedup"
	"github.com/untoldecay/roadmap/internal/executor"
	"github.com/untoldecay/roadmap/internal/frontmatter"
	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/resolver"
	"github.com/untoldecay/roadmap/internal/result"
	"github.com/untoldecay/roadmap/internal/storage"
)

// reconcileRemote runs the remote phase: list both sides, detect
// duplicates, resolve them to actions, execute, then write the outcome
// back to the managed tree. Failures never escape as errors; they land
// in the returned report.
func (e *Engine) reconcileRemote(ctx context.Context, opts Options) *executor.SyncReport {
	backendName := e.backend.Name()
	runStart := e.now()

	if res := e.backend.Authenticate(ctx); res.IsErr() {
		return &executor.SyncReport{Backend: backendName, Err: res.UnwrapErr()}
	}

	lastSync := e.lastRemoteSync(ctx, backendName)

	// Both listings are network-bound and independent.
	var (
		remoteIssues     map[string]remote.SyncIssue
		remoteMilestones map[string]remote.SyncMilestone
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		issues, serr := e.backend.ListIssues(gctx, remote.IssueFilter{}).Get()
		if serr != nil {
			return serr
		}
		remoteIssues = issues
		return nil
	})
	g.Go(func() error {
		milestones, serr := e.backend.ListMilestones(gctx).Get()
		if serr != nil {
			return serr
		}
		remoteMilestones = milestones
		return nil
	})
	if err := g.Wait(); err != nil {
		return &executor.SyncReport{Backend: backendName, Err: asSyncError(err)}
	}

	localIssues, err := e.store.ListIssues(ctx, storage.IssueFilter{})
	if err != nil {
		return &executor.SyncReport{Backend: backendName, Err: result.FromException(err, "", "")}
	}
	localMilestones, err := e.store.ListMilestones(ctx)
	if err != nil {
		return &executor.SyncReport{Backend: backendName, Err: result.FromException(err, "", "")}
	}
	links, err := e.store.ListRemoteLinks(ctx, backendName)
	if err != nil {
		return &executor.SyncReport{Backend: backendName, Err: result.FromException(err, "", "")}
	}

	locals := make([]dedup.Record, 0, len(localIssues))
	for _, issue := range localIssues {
		key, _ := issue.RemoteID(backendName)
		locals = append(locals, dedup.Record{
			ID:        issue.ID,
			Title:     issue.Title,
			Content:   issue.Content,
			RemoteKey: key,
		})
	}
	remotes := make([]dedup.Record, 0, len(remoteIssues))
	for id, ri := range remoteIssues {
		remotes = append(remotes, dedup.Record{
			ID:        id,
			Title:     ri.Title,
			Content:   ri.Content,
			RemoteKey: ri.BackendID,
		})
	}

	dcfg := e.cfg.Detector
	dcfg.Backend = backendName
	detection := dedup.New(dcfg).Detect(locals, remotes)

	// A pair joined by remote_links is the same issue on both sides;
	// reconciliation owns it, not duplicate resolution.
	matches := detection.Matches[:0:0]
	for _, m := range detection.Matches {
		if links[m.Local.ID] == m.Remote.ID {
			continue
		}
		matches = append(matches, m)
	}

	res := resolver.New()
	if e.cfg.AutoResolveThreshold > 0 {
		res.AutoResolveThreshold = e.cfg.AutoResolveThreshold
	}
	actions := res.Automatic(matches)

	// Only canonical representatives reach the executor; folding the
	// rest is the merge flow's job.
	canonicalLocal := recordIDs(detection.CanonicalLocals)
	canonicalRemote := recordIDs(detection.CanonicalRemotes)
	in := executor.Input{
		Actions:          actions,
		LocalMilestones:  localMilestones,
		RemoteMilestones: remoteMilestones,
	}
	for _, issue := range localIssues {
		if canonicalLocal[issue.ID] {
			in.LocalIssues = append(in.LocalIssues, issue)
		}
	}
	in.RemoteIssues = make(map[string]remote.SyncIssue, len(remoteIssues))
	for id, ri := range remoteIssues {
		if canonicalRemote[id] {
			in.RemoteIssues[id] = ri
		}
	}

	ecfg := e.cfg.Executor
	ecfg.LastSync = lastSync
	ecfg.DryRun = opts.DryRun
	report := executor.New(e.store, e.backend, ecfg).Run(ctx, in)

	if !opts.DryRun {
		e.materialize(ctx, report)
		if report.Err == nil {
			key := keyLastRemoteSync + backendName
			if err := e.store.SetSyncState(ctx, key, runStart.UTC().Format(time.RFC3339)); err != nil {
				debug.Logf("engine: recording remote sync marker: %v", err)
			}
		}
	}
	return report
}

// lastRemoteSync reads the per-backend sync marker, zero time when the
// backend has never completed a run.
func (e *Engine) lastRemoteSync(ctx context.Context, backendName string) time.Time {
	raw, err := e.store.GetSyncState(ctx, keyLastRemoteSync+backendName)
	if err != nil || raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// materialize writes entities the remote phase touched back to their
// managed files, so the tree and the store agree after a pull, link,
// or push. Failures are recorded on the report per entity.
func (e *Engine) materialize(ctx context.Context, report *executor.SyncReport) {
	var ids []string
	seen := map[string]bool{}
	for _, group := range [][]string{report.Pushed, report.Pulled, report.Linked, report.UpdatedLocal} {
		for _, id := range group {
			if id == "" || strings.HasPrefix(id, "remote:") || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	index := e.indexFiles()
	for _, id := range ids {
		if err := e.materializeEntity(ctx, id, index); err != nil {
			report.Errors[id] = err.Error()
			report.Failures = append(report.Failures, result.FromException(err, "file", id))
		}
	}
}

// indexFiles maps entity ID to its parsed managed file. Unparseable
// files are skipped; their entities fall back to the default path.
func (e *Engine) indexFiles() map[string]*frontmatter.File {
	index := map[string]*frontmatter.File{}
	paths, err := e.walkManaged()
	if err != nil {
		return index
	}
	for _, path := range paths {
		f, err := frontmatter.Parse(path)
		if err != nil {
			continue
		}
		if id := entityID(f); id != "" {
			index[id] = f
		}
	}
	return index
}

func (e *Engine) materializeEntity(ctx context.Context, id string, index map[string]*frontmatter.File) error {
	if issue, err := e.store.GetIssue(ctx, id); err != nil {
		return err
	} else if issue != nil {
		path := filepath.Join(e.cfg.RoadmapDir, "issues", id+".md")
		if f := index[id]; f != nil {
			path = f.Path
		}
		data, err := frontmatter.Marshal(issue, issue.Content)
		if err != nil {
			return err
		}
		return e.writeManaged(ctx, path, data)
	}

	if m, err := e.store.GetMilestone(ctx, id); err != nil {
		return err
	} else if m != nil {
		path := filepath.Join(e.cfg.RoadmapDir, "milestones", id+".md")
		body := ""
		if f := index[id]; f != nil {
			path = f.Path
			body = f.Body
		}
		data, err := frontmatter.Marshal(m, body)
		if err != nil {
			return err
		}
		return e.writeManaged(ctx, path, data)
	}

	debug.Logf("engine: nothing in the store for synced entity %s", id)
	return nil
}

// writeManaged writes a managed file and records its hash so the next
// incremental pass does not re-sync it.
func (e *Engine) writeManaged(ctx context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	hash, err := frontmatter.Hash(path)
	if err != nil {
		return err
	}
	return e.store.UpsertFileSyncState(ctx, path, hash)
}

func recordIDs(records []dedup.Record) map[string]bool {
	ids := make(map[string]bool, len(records))
	for _, r := range records {
		ids[r.ID] = true
	}
	return ids
}

// asSyncError recovers the categorized error an errgroup goroutine
// returned, wrapping anything else.
func asSyncError(err error) *result.SyncError {
	var serr *result.SyncError
	if errors.As(err, &serr) {
		return serr
	}
	return result.FromException(err, "", "")
}
