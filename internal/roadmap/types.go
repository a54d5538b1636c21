// Package roadmap defines the domain types shared across the store, the
// sync engine, and the CLI: issues, milestones, projects, and comments.
package roadmap

import (
	"fmt"
	"strings"
	"time"
)

// Status is an issue's workflow position.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusClosed     Status = "closed"
	StatusArchived   Status = "archived"
)

// ValidStatuses lists every accepted issue status.
func ValidStatuses() []Status {
	return []Status{StatusBacklog, StatusTodo, StatusInProgress, StatusClosed, StatusArchived}
}

// Priority is an issue's urgency. The empty string means unset.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// MilestoneStatus is open or closed.
type MilestoneStatus string

const (
	MilestoneOpen   MilestoneStatus = "open"
	MilestoneClosed MilestoneStatus = "closed"
)

// ProjectStatus is active or archived.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// SyncMetaLastSynced is the SyncMeta key recording when the entity last
// round-tripped with a remote backend (RFC 3339).
const SyncMetaLastSynced = "last_synced"

// Issue is the core tracked entity. IDs are opaque, stable, and never
// reused.
type Issue struct {
	ID        string            `yaml:"id,omitempty" json:"id"`
	Title     string            `yaml:"title" json:"title"`
	Content   string            `yaml:"-" json:"content,omitempty"`
	Status    Status            `yaml:"status,omitempty" json:"status"`
	Priority  Priority          `yaml:"priority,omitempty" json:"priority,omitempty"`
	Assignee  string            `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	Milestone string            `yaml:"milestone,omitempty" json:"milestone,omitempty"`
	Labels    []string          `yaml:"labels,omitempty" json:"labels,omitempty"`
	DependsOn []string          `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	RemoteIDs map[string]string `yaml:"remote_ids,omitempty" json:"remote_ids,omitempty"`
	Created   time.Time         `yaml:"created,omitempty" json:"created"`
	Updated   time.Time         `yaml:"updated,omitempty" json:"updated"`
	SyncMeta  map[string]string `yaml:"sync_meta,omitempty" json:"sync_meta,omitempty"`
}

// Validate checks the construction invariants. It does not check
// referential integrity; that is the store's job.
func (i *Issue) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("issue %s: title must not be empty", i.ID)
	}
	if i.Status != "" && !validStatus(i.Status) {
		return fmt.Errorf("issue %s: invalid status %q", i.ID, i.Status)
	}
	if i.Priority != "" && !validPriority(i.Priority) {
		return fmt.Errorf("issue %s: invalid priority %q", i.ID, i.Priority)
	}
	for _, dep := range i.DependsOn {
		if dep == i.ID {
			return fmt.Errorf("issue %s: depends on itself", i.ID)
		}
	}
	return nil
}

func validStatus(s Status) bool {
	for _, v := range ValidStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// RemoteID returns the backend-native ID linked to this issue, if any.
func (i *Issue) RemoteID(backend string) (string, bool) {
	id, ok := i.RemoteIDs[backend]
	return id, ok
}

// SetRemoteID records the backend-native ID, at most one per backend.
func (i *Issue) SetRemoteID(backend, id string) {
	if i.RemoteIDs == nil {
		i.RemoteIDs = make(map[string]string)
	}
	i.RemoteIDs[backend] = id
}

// LastSynced parses the last-sync timestamp out of SyncMeta.
func (i *Issue) LastSynced() (time.Time, bool) {
	raw, ok := i.SyncMeta[SyncMetaLastSynced]
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SetLastSynced records the sync instant in SyncMeta.
func (i *Issue) SetLastSynced(t time.Time) {
	if i.SyncMeta == nil {
		i.SyncMeta = make(map[string]string)
	}
	i.SyncMeta[SyncMetaLastSynced] = t.UTC().Format(time.RFC3339)
}

// Touch bumps Updated, keeping it monotone non-decreasing.
func (i *Issue) Touch(now time.Time) {
	if now.After(i.Updated) {
		i.Updated = now
	}
}

// Milestone groups issues toward a target date.
type Milestone struct {
	ID        string            `yaml:"id,omitempty" json:"id"`
	Name      string            `yaml:"name" json:"name"`
	Headline  string            `yaml:"headline,omitempty" json:"headline,omitempty"`
	DueDate   *time.Time        `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	Status    MilestoneStatus   `yaml:"status,omitempty" json:"status"`
	ProjectID string            `yaml:"project,omitempty" json:"project,omitempty"`
	RemoteIDs map[string]string `yaml:"remote_ids,omitempty" json:"remote_ids,omitempty"`
	Created   time.Time         `yaml:"created,omitempty" json:"created"`
	Updated   time.Time         `yaml:"updated,omitempty" json:"updated"`
}

// Validate checks the milestone construction invariants.
func (m *Milestone) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("milestone %s: name must not be empty", m.ID)
	}
	if m.Status != "" && m.Status != MilestoneOpen && m.Status != MilestoneClosed {
		return fmt.Errorf("milestone %s: invalid status %q", m.ID, m.Status)
	}
	return nil
}

// RemoteID returns the backend-native ID linked to this milestone.
func (m *Milestone) RemoteID(backend string) (string, bool) {
	id, ok := m.RemoteIDs[backend]
	return id, ok
}

// SetRemoteID records the backend-native ID, at most one per backend.
func (m *Milestone) SetRemoteID(backend, id string) {
	if m.RemoteIDs == nil {
		m.RemoteIDs = make(map[string]string)
	}
	m.RemoteIDs[backend] = id
}

// Progress is a milestone's derived completion state.
type Progress struct {
	ClosedIssues int `json:"closed_issues"`
	TotalIssues  int `json:"total_issues"`
}

// Ratio returns completion in [0,1]; zero issues counts as zero progress.
func (p Progress) Ratio() float64 {
	if p.TotalIssues == 0 {
		return 0
	}
	return float64(p.ClosedIssues) / float64(p.TotalIssues)
}

// Project is the top of the reference chain project → milestone → issue.
type Project struct {
	ID          string        `yaml:"id,omitempty" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Status      ProjectStatus `yaml:"status,omitempty" json:"status"`
	Created     time.Time     `yaml:"created,omitempty" json:"created"`
	Updated     time.Time     `yaml:"updated,omitempty" json:"updated"`
}

// Validate checks the project construction invariants.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project %s: name must not be empty", p.ID)
	}
	if p.Status != "" && p.Status != ProjectActive && p.Status != ProjectArchived {
		return fmt.Errorf("project %s: invalid status %q", p.ID, p.Status)
	}
	return nil
}

// Comment is a note attached to an issue.
type Comment struct {
	ID      int64     `json:"id"`
	IssueID string    `json:"issue_id"`
	Author  string    `json:"author,omitempty"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}
