package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/storage"
)

// newTestStore creates a store backed by a temp-dir database file.
// File-backed databases behave like production under the connection
// pool; shared in-memory databases do not.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreWithDir(t, "")
}

// newTestStoreWithDir also points the store at a roadmap directory so
// the write-safety scan has something to walk.
func newTestStoreWithDir(t *testing.T, roadmapDir string) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := New(ctx, storage.Config{
		Path:       filepath.Join(t.TempDir(), "test.db"),
		RoadmapDir: roadmapDir,
		Prefix:     DefaultPrefix,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Errorf("Failed to close test database: %v", cerr)
		}
	})
	return store
}

// mustCreateIssue inserts a minimal issue and returns it with its
// minted ID.
func mustCreateIssue(t *testing.T, store *Store, title string) *roadmap.Issue {
	t.Helper()
	issue := &roadmap.Issue{Title: title}
	if err := store.CreateIssue(context.Background(), issue); err != nil {
		t.Fatalf("CreateIssue(%q) failed: %v", title, err)
	}
	return issue
}

// mustCreateMilestone inserts a minimal milestone and returns it.
func mustCreateMilestone(t *testing.T, store *Store, name string) *roadmap.Milestone {
	t.Helper()
	m := &roadmap.Milestone{Name: name}
	if err := store.CreateMilestone(context.Background(), m); err != nil {
		t.Fatalf("CreateMilestone(%q) failed: %v", name, err)
	}
	return m
}
