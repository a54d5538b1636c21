// Package frontmatter parses the managed markdown files: a YAML block
// bounded by --- sentinels at the head of the file, followed by free
// markdown body. It also computes the content hashes the sync state
// bookkeeping relies on.
package frontmatter

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/untoldecay/roadmap/internal/roadmap"
)

// Kind names the entity type a managed file holds, inferred from its
// directory.
type Kind string

const (
	KindIssue     Kind = "issue"
	KindMilestone Kind = "milestone"
	KindProject   Kind = "project"
	KindUnknown   Kind = "unknown"
)

const delimiter = "---"

// SchemaError reports a frontmatter block that failed to parse.
type SchemaError struct {
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in %s: %v", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// File is one parsed managed file. Exactly one of Issue, Milestone,
// Project is set, matching Kind.
type File struct {
	Path      string
	Kind      Kind
	Meta      map[string]any
	Body      string
	Issue     *roadmap.Issue
	Milestone *roadmap.Milestone
	Project   *roadmap.Project
}

// FileMeta is the sync-state bookkeeping triple for one file.
type FileMeta struct {
	Hash    string
	Size    int64
	ModTime time.Time
}

// Parse reads a managed file and constructs its typed entity. A file
// with no frontmatter block parses with an empty metadata map; a block
// that is not valid YAML is a SchemaError naming the path.
func Parse(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	meta, body, err := split(raw)
	if err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}
	meta = RepairGitData(meta)

	f := &File{
		Path: path,
		Kind: KindForPath(path),
		Meta: meta,
		Body: body,
	}
	if err := f.buildEntity(); err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}
	return f, nil
}

// split separates the frontmatter map from the markdown body.
func split(raw []byte) (map[string]any, string, error) {
	content := strings.TrimPrefix(string(raw), "\uFEFF")
	lines := strings.SplitAfter(content, "\n")

	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != delimiter {
		return map[string]any{}, content, nil
	}

	var yamlBuf bytes.Buffer
	bodyStart := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == delimiter {
			bodyStart = i + 1
			break
		}
		yamlBuf.WriteString(lines[i])
	}
	if bodyStart == -1 {
		// Opening sentinel with no closing one: treat the whole file as body.
		return map[string]any{}, content, nil
	}

	meta := map[string]any{}
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &meta); err != nil {
		return nil, "", fmt.Errorf("parsing frontmatter: %w", err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	body := strings.TrimPrefix(strings.Join(lines[bodyStart:], ""), "\n")
	return meta, body, nil
}

// buildEntity decodes the repaired metadata map into the typed entity
// for the file's kind.
func (f *File) buildEntity() error {
	encoded, err := yaml.Marshal(f.Meta)
	if err != nil {
		return fmt.Errorf("re-encoding metadata: %w", err)
	}

	switch f.Kind {
	case KindMilestone:
		var m roadmap.Milestone
		if err := yaml.Unmarshal(encoded, &m); err != nil {
			return fmt.Errorf("decoding milestone fields: %w", err)
		}
		if m.Name == "" {
			m.Name = f.fallbackTitle()
		}
		f.Milestone = &m
	case KindProject:
		var p roadmap.Project
		if err := yaml.Unmarshal(encoded, &p); err != nil {
			return fmt.Errorf("decoding project fields: %w", err)
		}
		if p.Name == "" {
			p.Name = f.fallbackTitle()
		}
		f.Project = &p
	default:
		var i roadmap.Issue
		if err := yaml.Unmarshal(encoded, &i); err != nil {
			return fmt.Errorf("decoding issue fields: %w", err)
		}
		i.Content = f.Body
		if i.Title == "" {
			i.Title = f.fallbackTitle()
		}
		f.Issue = &i
	}
	return nil
}

// fallbackTitle derives a title for files whose frontmatter carries
// none: the first markdown heading, then the filename stem.
func (f *File) fallbackTitle() string {
	for _, line := range strings.Split(f.Body, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// KindForPath infers the entity kind from the managed directory the
// path sits under, including the archive/ counterparts.
func KindForPath(path string) Kind {
	normalized := filepath.ToSlash(path)
	switch {
	case strings.Contains(normalized, "/issues/") || strings.HasPrefix(normalized, "issues/"):
		return KindIssue
	case strings.Contains(normalized, "/milestones/") || strings.HasPrefix(normalized, "milestones/"):
		return KindMilestone
	case strings.Contains(normalized, "/projects/") || strings.HasPrefix(normalized, "projects/"):
		return KindProject
	}
	return KindUnknown
}

// Hash returns the SHA-256 of the file's raw bytes in hex. A missing
// file hashes to the empty string, the sentinel for "treat as changed".
func Hash(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Metadata returns the hash/size/mtime triple for sync bookkeeping.
func Metadata(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, fmt.Errorf("stat %s: %w", path, err)
	}
	hash, err := Hash(path)
	if err != nil {
		return FileMeta{}, err
	}
	return FileMeta{Hash: hash, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// RepairGitData normalizes two historical frontmatter shapes in place:
// git_commits entries that were bare hash strings become {hash: s}
// records, and git_branches entries that were {name: s} records become
// bare strings. Running it twice yields the same map.
func RepairGitData(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}

	if raw, ok := meta["git_commits"].([]any); ok {
		commits := make([]any, len(raw))
		for i, entry := range raw {
			if s, isStr := entry.(string); isStr {
				commits[i] = map[string]any{"hash": s}
			} else {
				commits[i] = entry
			}
		}
		meta["git_commits"] = commits
	}

	if raw, ok := meta["git_branches"].([]any); ok {
		branches := make([]any, len(raw))
		for i, entry := range raw {
			if m, isMap := entry.(map[string]any); isMap {
				if name, hasName := m["name"].(string); hasName {
					branches[i] = name
					continue
				}
			}
			branches[i] = entry
		}
		meta["git_branches"] = branches
	}

	return meta
}

// Marshal renders an entity back to frontmatter + body form.
func Marshal(entity any, body string) ([]byte, error) {
	encoded, err := yaml.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	buf.Write(encoded)
	buf.WriteString(delimiter + "\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}
