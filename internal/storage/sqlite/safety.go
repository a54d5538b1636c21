package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directories scanned for conflict markers, relative to the roadmap
// root.
var managedDirs = []string{
	"projects", "milestones", "issues",
	filepath.Join("archive", "projects"),
	filepath.Join("archive", "milestones"),
	filepath.Join("archive", "issues"),
}

// IsSafeForWrites reports whether the store may be written to. Writes
// are refused while the connection is unhealthy or while any managed
// markdown file carries git merge-conflict markers, since syncing a
// half-merged tree would push garbage to the remote.
func (s *Store) IsSafeForWrites(ctx context.Context) (bool, string) {
	if err := s.db.PingContext(ctx); err != nil {
		return false, fmt.Sprintf("database connection unhealthy: %v", err)
	}
	if s.roadmapDir == "" {
		return true, ""
	}

	conflicted, err := findConflictMarkers(s.roadmapDir)
	if err != nil {
		return false, fmt.Sprintf("scanning for conflict markers: %v", err)
	}
	if len(conflicted) == 0 {
		// Clear a stale flag from an earlier dirty probe.
		if flagged, _ := s.GetSyncState(ctx, "git_conflicts_detected"); flagged == "true" {
			_ = s.SetSyncState(ctx, "git_conflicts_detected", "false")
			_ = s.SetSyncState(ctx, "conflict_files", "[]")
		}
		return true, ""
	}

	files, merr := json.Marshal(conflicted)
	if merr != nil {
		files = []byte("[]")
	}
	_ = s.SetSyncState(ctx, "git_conflicts_detected", "true")
	_ = s.SetSyncState(ctx, "conflict_files", string(files))
	return false, fmt.Sprintf("merge conflict markers present in %d file(s)", len(conflicted))
}

// findConflictMarkers walks the managed directories and returns the
// relative paths of markdown files containing all three git conflict
// sentinels.
func findConflictMarkers(root string) ([]string, error) {
	var conflicted []string
	for _, dir := range managedDirs {
		base := filepath.Join(root, dir)
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
				return nil
			}
			hit, err := hasConflictMarkers(path)
			if err != nil {
				return err
			}
			if hit {
				rel, rerr := filepath.Rel(root, path)
				if rerr != nil {
					rel = path
				}
				conflicted = append(conflicted, filepath.ToSlash(rel))
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	sort.Strings(conflicted)
	return conflicted, nil
}

// hasConflictMarkers reports whether a file contains the <<<<<<<,
// =======, and >>>>>>> sentinels, each at the start of a line. All
// three must appear; a lone ======= is legal markdown (a setext
// heading underline).
func hasConflictMarkers(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var opening, separator, closing bool
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "<<<<<<<"):
			opening = true
		case strings.HasPrefix(line, "======="):
			separator = true
		case strings.HasPrefix(line, ">>>>>>>"):
			closing = true
		}
		if opening && separator && closing {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return false, nil
}
