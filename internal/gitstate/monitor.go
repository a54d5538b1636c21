// Package gitstate answers "which managed files changed since the last
// synced commit" by comparing git HEAD against a marker kept in the
// store's sync state.
package gitstate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/untoldecay/roadmap/internal/debug"
)

// ChangeType classifies what happened to a path between two commits.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// markerKey is the sync_state key holding the last synced commit SHA.
const markerKey = "last_synced_commit"

// legacyMarkerFile is the pre-store marker location, read once when the
// store has no marker yet. New markers are written to the store only.
const legacyMarkerFile = "sync_git_state.txt"

// StateStore is the slice of the storage interface the monitor needs:
// the sync_state key/value table.
type StateStore interface {
	GetSyncState(ctx context.Context, key string) (string, error)
	SetSyncState(ctx context.Context, key, value string) error
}

// Monitor detects managed-file changes between the stored marker and
// the current HEAD. Outside a git checkout every operation degrades to
// a no-op so file-only workflows keep working.
type Monitor struct {
	roadmapDir string
	store      StateStore

	mu     sync.Mutex
	topDir string // git toplevel, memoized
	head   string // HEAD SHA, memoized until ClearCache
	noRepo bool
	probed bool
}

// NewMonitor creates a monitor for the managed tree rooted at
// roadmapDir, persisting its marker through store.
func NewMonitor(roadmapDir string, store StateStore) *Monitor {
	// git prints symlink-resolved paths; match it so Rel stays sane.
	if resolved, err := filepath.EvalSymlinks(roadmapDir); err == nil {
		roadmapDir = resolved
	}
	return &Monitor{roadmapDir: roadmapDir, store: store}
}

// DetectChanges returns added/modified/deleted for every managed file
// that changed between the stored marker and HEAD. Paths are relative
// to the roadmap directory, POSIX-slashed. With no stored marker every
// tracked managed file comes back as added; with HEAD equal to the
// marker the map is empty. Outside a repository the map is empty and
// no error is returned.
func (m *Monitor) DetectChanges(ctx context.Context) (map[string]ChangeType, error) {
	top, head, ok := m.probe(ctx)
	if !ok {
		return map[string]ChangeType{}, nil
	}

	marker, err := m.loadMarker(ctx)
	if err != nil {
		return nil, err
	}

	if marker == "" {
		return m.allTracked(ctx, top)
	}
	if marker == head {
		return map[string]ChangeType{}, nil
	}

	out, err := runGit(ctx, m.roadmapDir, "diff", "--name-status", "--no-renames", marker, head, "--", ".")
	if err != nil {
		// A rewritten or pruned marker commit cannot be diffed against;
		// fall back to the full tracked set.
		debug.Logf("gitstate: diff %s..%s failed (%v), treating all files as added", short(marker), short(head), err)
		return m.allTracked(ctx, top)
	}

	changes := make(map[string]ChangeType)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		rel, ok := m.managedPath(top, fields[1])
		if !ok {
			continue
		}
		switch fields[0][0] {
		case 'A':
			changes[rel] = ChangeAdded
		case 'M':
			changes[rel] = ChangeModified
		case 'D':
			changes[rel] = ChangeDeleted
		}
	}
	return changes, nil
}

// MarkSynced records the current HEAD as the synced marker. A no-op
// outside a repository.
func (m *Monitor) MarkSynced(ctx context.Context) error {
	_, head, ok := m.probe(ctx)
	if !ok {
		return nil
	}
	if err := m.store.SetSyncState(ctx, markerKey, head); err != nil {
		return fmt.Errorf("recording synced commit: %w", err)
	}
	return nil
}

// ClearCache forgets the memoized repository probe. Test hook.
func (m *Monitor) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probed = false
	m.topDir = ""
	m.head = ""
	m.noRepo = false
}

// probe resolves and memoizes the repo toplevel and HEAD. ok is false
// outside a repository or before the first commit.
func (m *Monitor) probe(ctx context.Context) (top, head string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.probed {
		return m.topDir, m.head, !m.noRepo
	}
	m.probed = true

	top, err := runGit(ctx, m.roadmapDir, "rev-parse", "--show-toplevel")
	if err != nil {
		debug.Logf("gitstate: %s is not inside a git repository: %v", m.roadmapDir, err)
		m.noRepo = true
		return "", "", false
	}
	// rev-parse HEAD yields the SHA even on a detached HEAD; it only
	// fails before the first commit.
	head, err = runGit(ctx, m.roadmapDir, "rev-parse", "HEAD")
	if err != nil {
		debug.Logf("gitstate: repository at %s has no commits: %v", top, err)
		m.noRepo = true
		return "", "", false
	}
	m.topDir = top
	m.head = head
	return top, head, true
}

// loadMarker reads the synced-commit marker, preferring the store and
// falling back to the legacy marker file.
func (m *Monitor) loadMarker(ctx context.Context) (string, error) {
	marker, err := m.store.GetSyncState(ctx, markerKey)
	if err != nil {
		return "", fmt.Errorf("reading synced commit marker: %w", err)
	}
	if marker != "" {
		return marker, nil
	}

	raw, err := os.ReadFile(filepath.Join(m.roadmapDir, legacyMarkerFile))
	if err != nil {
		return "", nil
	}
	legacy := strings.TrimSpace(strings.SplitN(string(raw), "\n", 2)[0])
	if legacy != "" {
		debug.Logf("gitstate: using legacy marker file (commit %s)", short(legacy))
	}
	return legacy, nil
}

// allTracked lists every tracked managed file as added.
func (m *Monitor) allTracked(ctx context.Context, top string) (map[string]ChangeType, error) {
	out, err := runGit(ctx, m.roadmapDir, "ls-files", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("listing tracked files: %w", err)
	}
	changes := make(map[string]ChangeType)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// ls-files emits paths relative to the working directory, which
		// is the roadmap dir here; diff emits toplevel-relative paths.
		if rel, ok := m.managedRel(line); ok {
			changes[rel] = ChangeAdded
		}
	}
	return changes, nil
}

// managedPath maps a toplevel-relative git path into a roadmap-relative
// managed path, or reports false for paths outside the managed tree.
func (m *Monitor) managedPath(top, gitPath string) (string, bool) {
	abs := filepath.Join(top, filepath.FromSlash(gitPath))
	rel, err := filepath.Rel(m.roadmapDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return m.managedRel(filepath.ToSlash(rel))
}

// managedRel keeps only markdown files in the managed subtrees.
func (m *Monitor) managedRel(rel string) (string, bool) {
	rel = filepath.ToSlash(rel)
	if !strings.HasSuffix(rel, ".md") {
		return "", false
	}
	trimmed := strings.TrimPrefix(rel, "archive/")
	switch {
	case strings.HasPrefix(trimmed, "projects/"),
		strings.HasPrefix(trimmed, "milestones/"),
		strings.HasPrefix(trimmed, "issues/"):
		return rel, true
	}
	return "", false
}

// runGit executes one git command with the given working directory and
// returns trimmed stdout.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
