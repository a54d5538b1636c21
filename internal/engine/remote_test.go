package engine

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/untoldecay/roadmap/internal/frontmatter"
	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/result"
)

// fakeBackend is an in-memory Backend. The engine lists issues and
// milestones concurrently, so every method locks.
type fakeBackend struct {
	mu         sync.Mutex
	issues     map[string]remote.SyncIssue
	milestones map[string]remote.SyncMilestone
	nextNum    int
	creates    int
	updates    int
	now        time.Time
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		issues:     map[string]remote.SyncIssue{},
		milestones: map[string]remote.SyncMilestone{},
		nextNum:    500,
		now:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeBackend) addIssue(title, content string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextNum++
	id := strconv.Itoa(f.nextNum)
	f.issues[id] = remote.SyncIssue{
		ID: id, Title: title, Content: content, Status: "todo",
		Created: f.now, Updated: f.now,
		BackendName: "github", BackendID: id,
	}
	return id
}

func (f *fakeBackend) addMilestone(title string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextNum++
	id := strconv.Itoa(f.nextNum)
	f.milestones[id] = remote.SyncMilestone{
		ID: id, Title: title, Status: remote.StateOpen,
		Created: f.now, Updated: f.now,
		BackendName: "github", BackendID: id,
	}
	return id
}

func (f *fakeBackend) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func (f *fakeBackend) Name() string { return "github" }

func (f *fakeBackend) Authenticate(ctx context.Context) result.Result[remote.Nothing] {
	return result.Ok(remote.Nothing{})
}

func (f *fakeBackend) ListIssues(ctx context.Context, filter remote.IssueFilter) result.Result[map[string]remote.SyncIssue] {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]remote.SyncIssue, len(f.issues))
	for id, si := range f.issues {
		if !filter.Since.IsZero() && si.Updated.Before(filter.Since) {
			continue
		}
		out[id] = si
	}
	return result.Ok(out)
}

func (f *fakeBackend) GetIssue(ctx context.Context, remoteID string) result.Result[remote.SyncIssue] {
	f.mu.Lock()
	defer f.mu.Unlock()
	si, ok := f.issues[remoteID]
	if !ok {
		return result.Err[remote.SyncIssue](result.New(result.CategoryResourceNotFound, "no such issue"))
	}
	return result.Ok(si)
}

func (f *fakeBackend) CreateIssue(ctx context.Context, payload remote.IssuePayload) result.Result[remote.SyncIssue] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.nextNum++
	id := strconv.Itoa(f.nextNum)
	si := remote.SyncIssue{
		ID: id, Title: payload.Title, Content: payload.Body, Status: "todo",
		Labels: payload.Labels, Milestone: payload.Milestone,
		Created: f.now, Updated: f.now,
		BackendName: "github", BackendID: id,
	}
	f.issues[id] = si
	return result.Ok(si)
}

func (f *fakeBackend) UpdateIssue(ctx context.Context, remoteID string, payload remote.IssuePayload) result.Result[remote.SyncIssue] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	si, ok := f.issues[remoteID]
	if !ok {
		return result.Err[remote.SyncIssue](result.New(result.CategoryResourceNotFound, "no such issue"))
	}
	si.Title = payload.Title
	si.Content = payload.Body
	si.Updated = f.now
	f.issues[remoteID] = si
	return result.Ok(si)
}

func (f *fakeBackend) ListMilestones(ctx context.Context) result.Result[map[string]remote.SyncMilestone] {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]remote.SyncMilestone, len(f.milestones))
	for id, sm := range f.milestones {
		out[id] = sm
	}
	return result.Ok(out)
}

func (f *fakeBackend) GetMilestone(ctx context.Context, remoteID string) result.Result[remote.SyncMilestone] {
	f.mu.Lock()
	defer f.mu.Unlock()
	sm, ok := f.milestones[remoteID]
	if !ok {
		return result.Err[remote.SyncMilestone](result.New(result.CategoryResourceNotFound, "no such milestone"))
	}
	return result.Ok(sm)
}

func (f *fakeBackend) CreateMilestone(ctx context.Context, payload remote.MilestonePayload) result.Result[remote.SyncMilestone] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextNum++
	id := strconv.Itoa(f.nextNum)
	sm := remote.SyncMilestone{
		ID: id, Title: payload.Title, Description: payload.Description,
		Status: remote.StateOpen, DueDate: payload.DueDate,
		Created: f.now, Updated: f.now,
		BackendName: "github", BackendID: id,
	}
	f.milestones[id] = sm
	return result.Ok(sm)
}

func (f *fakeBackend) UpdateMilestone(ctx context.Context, remoteID string, payload remote.MilestonePayload) result.Result[remote.SyncMilestone] {
	f.mu.Lock()
	defer f.mu.Unlock()
	sm, ok := f.milestones[remoteID]
	if !ok {
		return result.Err[remote.SyncMilestone](result.New(result.CategoryResourceNotFound, "no such milestone"))
	}
	sm.Title = payload.Title
	sm.Description = payload.Description
	sm.Updated = f.now
	f.milestones[remoteID] = sm
	return result.Ok(sm)
}

func (f *fakeBackend) DeleteMilestone(ctx context.Context, remoteID string) result.Result[remote.Nothing] {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.milestones, remoteID)
	return result.Ok(remote.Nothing{})
}

func TestRemotePhasePushesAndPulls(t *testing.T) {
	ctx := context.Background()
	dir := newTestTree(t)
	writeFile(t, dir, "issues/rm-1.md", issueDoc("rm-1", "Local only", "Needs a remote copy."))

	backend := newFakeBackend()
	remoteID := backend.addIssue("Remote only", "Lives upstream.")
	backend.addMilestone("v2.0")

	store := newTestStore(t, dir)
	eng, err := New(store, backend, DefaultConfig(dir))
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}

	run, err := eng.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Remote == nil {
		t.Fatal("remote phase did not run")
	}
	if len(run.Remote.Pushed) != 1 || run.Remote.Pushed[0] != "rm-1" {
		t.Fatalf("pushed = %v", run.Remote.Pushed)
	}
	// One pulled issue plus one pulled milestone.
	if len(run.Remote.Pulled) != 2 {
		t.Fatalf("pulled = %v", run.Remote.Pulled)
	}

	if link, err := store.GetRemoteLink(ctx, "rm-1", "github"); err != nil || link == "" {
		t.Fatalf("rm-1 link = %q, %v", link, err)
	}
	localID, err := store.FindLocalByRemote(ctx, "github", remoteID)
	if err != nil || localID == "" {
		t.Fatalf("pulled issue not linked: %q, %v", localID, err)
	}

	// The pulled issue and milestone were materialized as managed files.
	pulledPath := filepath.Join(dir, "issues", localID+".md")
	f, err := frontmatter.Parse(pulledPath)
	if err != nil {
		t.Fatalf("parsing materialized issue: %v", err)
	}
	if got, _ := f.Issue.RemoteID("github"); f.Issue.Title != "Remote only" || got != remoteID {
		t.Fatalf("materialized issue = %+v", f.Issue)
	}

	m, err := store.GetMilestoneByName(ctx, "v2.0")
	if err != nil || m == nil {
		t.Fatalf("pulled milestone: %v, %v", m, err)
	}
	mf, err := frontmatter.Parse(filepath.Join(dir, "milestones", m.ID+".md"))
	if err != nil || mf.Milestone.Name != "v2.0" {
		t.Fatalf("materialized milestone: %v, %v", mf, err)
	}

	// The local file gained its remote link.
	lf, err := frontmatter.Parse(filepath.Join(dir, "issues", "rm-1.md"))
	if err != nil {
		t.Fatalf("parsing local file: %v", err)
	}
	if got, ok := lf.Issue.RemoteID("github"); !ok || got == "" {
		t.Fatalf("local file missing remote link: %+v", lf.Issue)
	}

	if v, _ := store.GetSyncState(ctx, keyLastRemoteSync+"github"); v == "" {
		t.Fatal("remote sync marker was not recorded")
	}

	// A second run with nothing changed moves nothing.
	again, err := eng.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Remote.Changed() {
		t.Fatalf("second run moved things: pushed %v pulled %v linked %v updated %v/%v",
			again.Remote.Pushed, again.Remote.Pulled, again.Remote.Linked,
			again.Remote.UpdatedRemote, again.Remote.UpdatedLocal)
	}
	if backend.createCalls() != 1 {
		t.Fatalf("create calls = %d, want 1", backend.createCalls())
	}
}

func TestRemotePhaseAutoLinksExactTitles(t *testing.T) {
	ctx := context.Background()
	dir := newTestTree(t)
	writeFile(t, dir, "issues/rm-1.md", issueDoc("rm-1", "Fix login", "Same work, both sides."))

	backend := newFakeBackend()
	remoteID := backend.addIssue("Fix login", "Same work, both sides.")

	store := newTestStore(t, dir)
	eng, err := New(store, backend, DefaultConfig(dir))
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}

	run, err := eng.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(run.Remote.Linked) != 1 || run.Remote.Linked[0] != "rm-1" {
		t.Fatalf("linked = %v", run.Remote.Linked)
	}
	if len(run.Remote.Pushed) != 0 || len(run.Remote.Pulled) != 0 {
		t.Fatalf("linking should preempt push/pull: pushed %v pulled %v", run.Remote.Pushed, run.Remote.Pulled)
	}
	if link, err := store.GetRemoteLink(ctx, "rm-1", "github"); err != nil || link != remoteID {
		t.Fatalf("link = %q, %v; want %q", link, err, remoteID)
	}
	if backend.createCalls() != 0 {
		t.Fatalf("create calls = %d, want 0", backend.createCalls())
	}
}

func TestRemotePhaseDryRunMutatesNothing(t *testing.T) {
	ctx := context.Background()
	dir := newTestTree(t)
	writeFile(t, dir, "issues/rm-1.md", issueDoc("rm-1", "Keep home", ""))

	backend := newFakeBackend()
	backend.addIssue("Stay upstream", "")

	store := newTestStore(t, dir)
	eng, err := New(store, backend, DefaultConfig(dir))
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}

	run, err := eng.Run(ctx, Options{DryRun: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Remote == nil || !run.Remote.DryRun {
		t.Fatalf("remote report = %+v", run.Remote)
	}
	if backend.createCalls() != 0 {
		t.Fatalf("dry run created remotely: %d calls", backend.createCalls())
	}
	if v, _ := store.GetSyncState(ctx, keyLastRemoteSync+"github"); v != "" {
		t.Fatalf("dry run recorded the remote marker: %q", v)
	}

	// No materialized file for the remote issue.
	entries, err := os.ReadDir(filepath.Join(dir, "issues"))
	if err != nil {
		t.Fatalf("reading issues dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dry run wrote files: %v", entries)
	}
}
