package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/untoldecay/roadmap/internal/frontmatter"
)

func TestSyncStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetSyncState(ctx, "last_synced_commit", "abc123"); err != nil {
		t.Fatalf("SetSyncState failed: %v", err)
	}
	got, err := store.GetSyncState(ctx, "last_synced_commit")
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if got != "abc123" {
		t.Errorf("Expected abc123, got %q", got)
	}

	// Overwrite
	if err := store.SetSyncState(ctx, "last_synced_commit", "def456"); err != nil {
		t.Fatalf("SetSyncState failed: %v", err)
	}
	got, err = store.GetSyncState(ctx, "last_synced_commit")
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if got != "def456" {
		t.Errorf("Expected def456 after overwrite, got %q", got)
	}
}

func TestGetSyncStateMissingKey(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetSyncState(context.Background(), "never_set")
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if got != "" {
		t.Errorf("Expected empty string for missing key, got %q", got)
	}
}

func TestRemoteLinkRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue := mustCreateIssue(t, store, "Linked")
	if err := store.SetRemoteLink(ctx, issue.ID, "github", "101"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}

	remoteID, err := store.GetRemoteLink(ctx, issue.ID, "github")
	if err != nil {
		t.Fatalf("GetRemoteLink failed: %v", err)
	}
	if remoteID != "101" {
		t.Errorf("Expected 101, got %q", remoteID)
	}

	localID, err := store.FindLocalByRemote(ctx, "github", "101")
	if err != nil {
		t.Fatalf("FindLocalByRemote failed: %v", err)
	}
	if localID != issue.ID {
		t.Errorf("Expected %s, got %q", issue.ID, localID)
	}
}

func TestRemoteLinkMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	remoteID, err := store.GetRemoteLink(ctx, "rm-404", "github")
	if err != nil {
		t.Fatalf("GetRemoteLink failed: %v", err)
	}
	if remoteID != "" {
		t.Errorf("Expected empty remote ID, got %q", remoteID)
	}

	localID, err := store.FindLocalByRemote(ctx, "github", "404")
	if err != nil {
		t.Fatalf("FindLocalByRemote failed: %v", err)
	}
	if localID != "" {
		t.Errorf("Expected empty local ID, got %q", localID)
	}
}

func TestRemoteLinkReplaceSameEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue := mustCreateIssue(t, store, "Relinked")
	if err := store.SetRemoteLink(ctx, issue.ID, "github", "101"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}
	if err := store.SetRemoteLink(ctx, issue.ID, "github", "202"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}

	remoteID, err := store.GetRemoteLink(ctx, issue.ID, "github")
	if err != nil {
		t.Fatalf("GetRemoteLink failed: %v", err)
	}
	if remoteID != "202" {
		t.Errorf("Expected relink to win, got %q", remoteID)
	}

	// The old remote ID no longer resolves.
	localID, err := store.FindLocalByRemote(ctx, "github", "101")
	if err != nil {
		t.Fatalf("FindLocalByRemote failed: %v", err)
	}
	if localID != "" {
		t.Errorf("Expected stale remote ID unresolved, got %q", localID)
	}
}

func TestRemoteLinkRemoteIDMoves(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := mustCreateIssue(t, store, "First owner")
	second := mustCreateIssue(t, store, "Second owner")

	if err := store.SetRemoteLink(ctx, first.ID, "github", "101"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}
	// Re-pointing the remote ID to another local entity evicts the
	// first link: a remote issue belongs to one local issue at a time.
	if err := store.SetRemoteLink(ctx, second.ID, "github", "101"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}

	localID, err := store.FindLocalByRemote(ctx, "github", "101")
	if err != nil {
		t.Fatalf("FindLocalByRemote failed: %v", err)
	}
	if localID != second.ID {
		t.Errorf("Expected %s to own the remote ID, got %q", second.ID, localID)
	}
	stale, err := store.GetRemoteLink(ctx, first.ID, "github")
	if err != nil {
		t.Fatalf("GetRemoteLink failed: %v", err)
	}
	if stale != "" {
		t.Errorf("Expected first owner's link evicted, got %q", stale)
	}
}

func TestRemoteLinkPerBackend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue := mustCreateIssue(t, store, "Multi-homed")
	if err := store.SetRemoteLink(ctx, issue.ID, "github", "101"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}
	if err := store.SetRemoteLink(ctx, issue.ID, "gitlab", "101"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}

	// Same remote ID on different backends is two distinct links.
	gh, err := store.GetRemoteLink(ctx, issue.ID, "github")
	if err != nil {
		t.Fatalf("GetRemoteLink failed: %v", err)
	}
	gl, err := store.GetRemoteLink(ctx, issue.ID, "gitlab")
	if err != nil {
		t.Fatalf("GetRemoteLink failed: %v", err)
	}
	if gh != "101" || gl != "101" {
		t.Errorf("Expected 101 on both backends, got github=%q gitlab=%q", gh, gl)
	}
}

func TestListRemoteLinks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := mustCreateIssue(t, store, "A")
	b := mustCreateIssue(t, store, "B")
	if err := store.SetRemoteLink(ctx, a.ID, "github", "1"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}
	if err := store.SetRemoteLink(ctx, b.ID, "github", "2"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}
	if err := store.SetRemoteLink(ctx, a.ID, "gitlab", "9"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}

	links, err := store.ListRemoteLinks(ctx, "github")
	if err != nil {
		t.Fatalf("ListRemoteLinks failed: %v", err)
	}
	want := map[string]string{a.ID: "1", b.ID: "2"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("Expected %v, got %v", want, links)
	}
}

func TestDeleteRemoteLink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue := mustCreateIssue(t, store, "Unlinked")
	if err := store.SetRemoteLink(ctx, issue.ID, "github", "101"); err != nil {
		t.Fatalf("SetRemoteLink failed: %v", err)
	}
	if err := store.DeleteRemoteLink(ctx, issue.ID, "github"); err != nil {
		t.Fatalf("DeleteRemoteLink failed: %v", err)
	}

	remoteID, err := store.GetRemoteLink(ctx, issue.ID, "github")
	if err != nil {
		t.Fatalf("GetRemoteLink failed: %v", err)
	}
	if remoteID != "" {
		t.Errorf("Expected link removed, got %q", remoteID)
	}

	// Deleting again is a no-op.
	if err := store.DeleteRemoteLink(ctx, issue.ID, "github"); err != nil {
		t.Errorf("Expected no error for missing link, got %v", err)
	}
}

func TestSetRemoteLinkRejectsEmptyFields(t *testing.T) {
	store := newTestStore(t)
	if err := store.SetRemoteLink(context.Background(), "rm-1", "github", ""); err == nil {
		t.Error("Expected error for empty remote ID, got nil")
	}
}

func TestFileSyncStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertFileSyncState(ctx, "issues/rm-1.md", "hash-a"); err != nil {
		t.Fatalf("UpsertFileSyncState failed: %v", err)
	}
	got, err := store.GetFileSyncState(ctx, "issues/rm-1.md")
	if err != nil {
		t.Fatalf("GetFileSyncState failed: %v", err)
	}
	if got != "hash-a" {
		t.Errorf("Expected hash-a, got %q", got)
	}

	if err := store.UpsertFileSyncState(ctx, "issues/rm-1.md", "hash-b"); err != nil {
		t.Fatalf("UpsertFileSyncState failed: %v", err)
	}
	got, err = store.GetFileSyncState(ctx, "issues/rm-1.md")
	if err != nil {
		t.Fatalf("GetFileSyncState failed: %v", err)
	}
	if got != "hash-b" {
		t.Errorf("Expected hash-b after upsert, got %q", got)
	}
}

func TestClearFileSyncState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertFileSyncState(ctx, "issues/rm-1.md", "hash-a"); err != nil {
		t.Fatalf("UpsertFileSyncState failed: %v", err)
	}
	if err := store.ClearFileSyncState(ctx); err != nil {
		t.Fatalf("ClearFileSyncState failed: %v", err)
	}

	got, err := store.GetFileSyncState(ctx, "issues/rm-1.md")
	if err != nil {
		t.Fatalf("GetFileSyncState failed: %v", err)
	}
	if got != "" {
		t.Errorf("Expected cleared state, got %q", got)
	}
}

func TestHasFileChanged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "rm-1.md")

	if err := os.WriteFile(path, []byte("---\nid: rm-1\n---\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// Never synced: changed.
	changed, err := store.HasFileChanged(ctx, path)
	if err != nil {
		t.Fatalf("HasFileChanged failed: %v", err)
	}
	if !changed {
		t.Error("Expected never-synced file to count as changed")
	}

	hash, err := frontmatter.Hash(path)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if err := store.UpsertFileSyncState(ctx, path, hash); err != nil {
		t.Fatalf("UpsertFileSyncState failed: %v", err)
	}

	// Synced and untouched: unchanged.
	changed, err = store.HasFileChanged(ctx, path)
	if err != nil {
		t.Fatalf("HasFileChanged failed: %v", err)
	}
	if changed {
		t.Error("Expected synced file to count as unchanged")
	}

	// Content edit: changed.
	if err := os.WriteFile(path, []byte("---\nid: rm-1\nstatus: todo\n---\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	changed, err = store.HasFileChanged(ctx, path)
	if err != nil {
		t.Fatalf("HasFileChanged failed: %v", err)
	}
	if !changed {
		t.Error("Expected edited file to count as changed")
	}

	// Deletion: changed.
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	changed, err = store.HasFileChanged(ctx, path)
	if err != nil {
		t.Fatalf("HasFileChanged failed: %v", err)
	}
	if !changed {
		t.Error("Expected deleted file to count as changed")
	}
}
