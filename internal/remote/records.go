package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/untoldecay/roadmap/internal/roadmap"
)

// SyncIssue is the wire-normalized issue record a backend mints. It
// carries the same semantic fields as the local entity plus the
// backend identity and the raw response for debugging. Status is
// already normalized into the local vocabulary.
type SyncIssue struct {
	ID          string
	Title       string
	Content     string
	Status      string
	Priority    string
	Assignee    string
	Milestone   string // milestone title on the remote, "" when unset
	Labels      []string
	Created     time.Time
	Updated     time.Time
	BackendName string
	BackendID   string
	RawResponse map[string]any
}

// Validate checks the construction invariants every backend must
// satisfy: id, title, and status non-empty.
func (si *SyncIssue) Validate() error {
	if si.ID == "" {
		return fmt.Errorf("sync issue: id must not be empty")
	}
	if strings.TrimSpace(si.Title) == "" {
		return fmt.Errorf("sync issue %s: title must not be empty", si.ID)
	}
	if si.Status == "" {
		return fmt.Errorf("sync issue %s: status must not be empty", si.ID)
	}
	return nil
}

// LocalIssue converts the record into a local issue ready for the
// store, carrying the backend link in RemoteIDs. The local ID is left
// empty; the store mints one.
func (si *SyncIssue) LocalIssue() *roadmap.Issue {
	issue := &roadmap.Issue{
		Title:     si.Title,
		Content:   si.Content,
		Status:    roadmap.Status(si.Status),
		Priority:  roadmap.Priority(si.Priority),
		Assignee:  si.Assignee,
		Milestone: si.Milestone,
		Labels:    append([]string(nil), si.Labels...),
		Created:   si.Created,
		Updated:   si.Updated,
	}
	if si.BackendName != "" && si.BackendID != "" {
		issue.RemoteIDs = map[string]string{si.BackendName: si.BackendID}
	}
	return issue
}

// SyncMilestone is the wire-normalized milestone record.
type SyncMilestone struct {
	ID          string
	Title       string
	Description string
	Status      string // StateOpen or StateClosed
	DueDate     *time.Time
	Created     time.Time
	Updated     time.Time
	BackendName string
	BackendID   string
	RawResponse map[string]any
}

// Validate checks id, title, and status non-empty.
func (sm *SyncMilestone) Validate() error {
	if sm.ID == "" {
		return fmt.Errorf("sync milestone: id must not be empty")
	}
	if strings.TrimSpace(sm.Title) == "" {
		return fmt.Errorf("sync milestone %s: title must not be empty", sm.ID)
	}
	if sm.Status == "" {
		return fmt.Errorf("sync milestone %s: status must not be empty", sm.ID)
	}
	return nil
}

// LocalMilestone converts the record into a local milestone carrying
// the backend link. The local ID is left empty; the store mints one.
func (sm *SyncMilestone) LocalMilestone() *roadmap.Milestone {
	m := &roadmap.Milestone{
		Name:     sm.Title,
		Headline: sm.Description,
		DueDate:  sm.DueDate,
		Status:   roadmap.MilestoneStatus(sm.Status),
		Created:  sm.Created,
		Updated:  sm.Updated,
	}
	if sm.BackendName != "" && sm.BackendID != "" {
		m.RemoteIDs = map[string]string{sm.BackendName: sm.BackendID}
	}
	return m
}

// SyncProject is the wire-normalized project record. No supported
// backend exposes projects today, so only local-side adapters mint
// these, but the detector treats both sides uniformly through it.
type SyncProject struct {
	ID          string
	Name        string
	Description string
	Status      string
	BackendName string
	BackendID   string
	RawResponse map[string]any
}

// Validate checks id, name, and status non-empty.
func (sp *SyncProject) Validate() error {
	if sp.ID == "" {
		return fmt.Errorf("sync project: id must not be empty")
	}
	if strings.TrimSpace(sp.Name) == "" {
		return fmt.Errorf("sync project %s: name must not be empty", sp.ID)
	}
	if sp.Status == "" {
		return fmt.Errorf("sync project %s: status must not be empty", sp.ID)
	}
	return nil
}
