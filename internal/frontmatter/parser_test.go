package frontmatter

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseIssue(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "issues/rm-1.md", `---
id: rm-1
title: Fix login flow
status: todo
priority: high
labels: [auth, bug]
depends_on: [rm-2]
remote_ids:
  github: "101"
---

The login form drops the session cookie.
`)

	f, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Kind != KindIssue {
		t.Fatalf("Kind = %q, want issue", f.Kind)
	}
	issue := f.Issue
	if issue == nil {
		t.Fatal("Issue is nil")
	}
	if issue.ID != "rm-1" || issue.Title != "Fix login flow" {
		t.Errorf("issue = %q/%q", issue.ID, issue.Title)
	}
	if issue.Status != "todo" || issue.Priority != "high" {
		t.Errorf("status/priority = %q/%q", issue.Status, issue.Priority)
	}
	if !reflect.DeepEqual(issue.Labels, []string{"auth", "bug"}) {
		t.Errorf("labels = %v", issue.Labels)
	}
	if got := issue.RemoteIDs["github"]; got != "101" {
		t.Errorf("remote_ids[github] = %q, want 101", got)
	}
	if !strings.Contains(issue.Content, "session cookie") {
		t.Errorf("body not captured: %q", issue.Content)
	}
}

func TestParseNoFrontmatter(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "issues/notes.md", "# Plain notes\n\nNo metadata here.\n")

	f, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil for frontmatter-less file", err)
	}
	if len(f.Meta) != 0 {
		t.Errorf("Meta = %v, want empty map", f.Meta)
	}
	if f.Issue.Title != "Plain notes" {
		t.Errorf("fallback title = %q, want heading text", f.Issue.Title)
	}
}

func TestParseFilenameFallbackTitle(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "issues/fix-the-build.md", "no heading body\n")
	f, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Issue.Title != "fix-the-build" {
		t.Errorf("title = %q, want filename stem", f.Issue.Title)
	}
}

func TestParseBadYAMLIsSchemaError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "issues/broken.md", "---\ntitle: [unclosed\n---\nbody\n")

	_, err := Parse(path)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("Parse() error = %T, want *SchemaError", err)
	}
	if se.Path != path {
		t.Errorf("SchemaError.Path = %q, want %q", se.Path, path)
	}
}

func TestParseUnclosedFrontmatterIsBody(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "issues/dashes.md", "---\nthis file just starts with a rule\n")
	f, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Meta) != 0 {
		t.Errorf("Meta = %v, want empty", f.Meta)
	}
}

func TestParseMilestoneAndProjectKinds(t *testing.T) {
	dir := t.TempDir()

	msPath := writeFile(t, dir, "milestones/v1.md", "---\nname: v1.0\nstatus: open\n---\n")
	f, err := Parse(msPath)
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != KindMilestone || f.Milestone == nil || f.Milestone.Name != "v1.0" {
		t.Errorf("milestone parse = kind %q, %+v", f.Kind, f.Milestone)
	}

	prPath := writeFile(t, dir, "archive/projects/legacy.md", "---\nname: legacy\nstatus: archived\n---\n")
	f, err = Parse(prPath)
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != KindProject || f.Project == nil || f.Project.Status != "archived" {
		t.Errorf("project parse = kind %q, %+v", f.Kind, f.Project)
	}
}

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{".roadmap/issues/rm-1.md", KindIssue},
		{".roadmap/archive/issues/rm-2.md", KindIssue},
		{".roadmap/milestones/v1.md", KindMilestone},
		{".roadmap/projects/core.md", KindProject},
		{"issues/rm-3.md", KindIssue},
		{".roadmap/README.md", KindUnknown},
	}
	for _, tt := range tests {
		if got := KindForPath(tt.path); got != tt.want {
			t.Errorf("KindForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestHash(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "issues/a.md", "hello\n")

	h1, err := Hash(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}

	// Identical bytes hash identically; a change is observable.
	h2, _ := Hash(path)
	if h1 != h2 {
		t.Error("hash is not deterministic")
	}
	writeFile(t, dir, "issues/a.md", "hello!\n")
	h3, _ := Hash(path)
	if h1 == h3 {
		t.Error("hash did not change with content")
	}

	// Missing file is the empty-digest sentinel, not an error.
	missing, err := Hash(filepath.Join(dir, "absent.md"))
	if err != nil || missing != "" {
		t.Errorf("Hash(missing) = (%q, %v), want (\"\", nil)", missing, err)
	}
}

func TestMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "issues/a.md", "12345")

	meta, err := Metadata(path)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Size != 5 {
		t.Errorf("Size = %d, want 5", meta.Size)
	}
	if meta.Hash == "" || meta.ModTime.IsZero() {
		t.Errorf("incomplete metadata: %+v", meta)
	}
}

func TestRepairGitDataIdempotent(t *testing.T) {
	meta := map[string]any{
		"git_commits":  []any{"abc123", map[string]any{"hash": "def456"}},
		"git_branches": []any{map[string]any{"name": "main"}, "develop"},
		"title":        "untouched",
	}

	once := RepairGitData(meta)
	commits, ok := once["git_commits"].([]any)
	if !ok || len(commits) != 2 {
		t.Fatalf("git_commits = %v", once["git_commits"])
	}
	for i, c := range commits {
		m, isMap := c.(map[string]any)
		if !isMap || m["hash"] == "" {
			t.Errorf("commit %d = %v, want {hash: ...}", i, c)
		}
	}
	branches, ok := once["git_branches"].([]any)
	if !ok || branches[0] != "main" || branches[1] != "develop" {
		t.Fatalf("git_branches = %v", once["git_branches"])
	}

	twice := RepairGitData(once)
	if !reflect.DeepEqual(once, twice) {
		t.Error("RepairGitData is not idempotent")
	}
	if twice["title"] != "untouched" {
		t.Error("unrelated keys were modified")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	type fm struct {
		ID    string `yaml:"id"`
		Title string `yaml:"title"`
	}
	raw, err := Marshal(fm{ID: "rm-9", Title: "Round trip"}, "Body text.")
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, dir, "issues/rm-9.md", string(raw))

	f, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Issue.ID != "rm-9" || f.Issue.Title != "Round trip" {
		t.Errorf("round trip = %q/%q", f.Issue.ID, f.Issue.Title)
	}
	if strings.TrimSpace(f.Issue.Content) != "Body text." {
		t.Errorf("body = %q", f.Issue.Content)
	}
}
