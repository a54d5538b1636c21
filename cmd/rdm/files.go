package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/untoldecay/roadmap/internal/frontmatter"
)

// entityPath is the default location for a managed entity file.
func entityPath(roadmapDir, kind, id string) string {
	return filepath.Join(roadmapDir, kind, id+".md")
}

// findEntityFile locates the managed file carrying an entity ID: the
// default path when its frontmatter matches, otherwise a walk of the
// kind's subtree. Empty when no file carries the ID.
func findEntityFile(roadmapDir, kind, id string) string {
	def := entityPath(roadmapDir, kind, id)
	if f, err := frontmatter.Parse(def); err == nil && entityFileID(f) == id {
		return def
	}

	var found string
	root := filepath.Join(roadmapDir, kind)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		f, err := frontmatter.Parse(path)
		if err != nil {
			return nil
		}
		if entityFileID(f) == id {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func entityFileID(f *frontmatter.File) string {
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

// writeEntityFile renders an entity to its managed file and records the
// hash so the next incremental pass does not re-sync a change the store
// already has.
func writeEntityFile(ctx context.Context, path string, entity any, body string) error {
	data, err := frontmatter.Marshal(entity, body)
	if err != nil {
		return err
	}
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
	return store.UpsertFileSyncState(ctx, path, hash)
}
