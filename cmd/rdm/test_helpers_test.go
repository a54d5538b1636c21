package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/untoldecay/roadmap/internal/storage"
	"github.com/untoldecay/roadmap/internal/storage/sqlite"
)

func newTestStore(t *testing.T, roadmapDir string) storage.Store {
	t.Helper()
	s, err := sqlite.New(context.Background(), storage.Config{
		Path:       filepath.Join(t.TempDir(), "test.db"),
		RoadmapDir: roadmapDir,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// swapStore points the package-level store at a test store and restores
// the original when the test finishes.
func swapStore(t *testing.T, s storage.Store) {
	t.Helper()
	orig := store
	store = s
	t.Cleanup(func() { store = orig })
}
