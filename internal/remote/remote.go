// Package remote defines the backend port: the seam between the sync
// engine and a remote issue tracker. A Backend translates the remote's
// wire format into the canonical SyncIssue/SyncMilestone/SyncProject
// records and never lets an error escape as anything other than a
// result.Result. No component outside a backend implementation touches
// the wire format.
package remote

import (
	"context"
	"time"

	"github.com/untoldecay/roadmap/internal/result"
	"github.com/untoldecay/roadmap/internal/roadmap"
)

// Nothing is the success payload for operations that only succeed or
// fail.
type Nothing struct{}

// The two-state model every supported remote exposes for issues and
// milestones.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// StateFor maps a local status onto the remote's two-state model. Only
// a closed issue closes its remote copy; every other status keeps it
// open.
func StateFor(status roadmap.Status) string {
	if status == roadmap.StatusClosed {
		return StateClosed
	}
	return StateOpen
}

// IssueFilter narrows ListIssues. The zero value lists everything.
// Which fields a backend can push down is backend-specific; backends
// ignore fields they cannot serve rather than failing.
type IssueFilter struct {
	State    string    // StateOpen, StateClosed, or "" for both
	Labels   []string  // require all of these labels
	Assignee string    // require this assignee
	Since    time.Time // only records updated at or after this instant
}

// IssuePayload is the canonical issue mutation payload. Milestone is a
// title; resolving it to a backend-native handle is the backend's job.
// Labels, assignees, and milestones the remote does not know are
// silently dropped by the backend so a partial payload still lands;
// reporting unknown references is the validator's job, not the port's.
type IssuePayload struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
	Milestone string
	State     string // StateOpen or StateClosed; ignored on create
}

// MilestonePayload is the canonical milestone mutation payload.
type MilestonePayload struct {
	Title       string
	Description string
	DueDate     *time.Time
	State       string // StateOpen or StateClosed
}

// Backend is the remote port. Every method returns a result.Result so
// callers branch on values, not panics; transport failures, HTTP error
// statuses, and malformed payloads all arrive as categorized
// SyncErrors.
type Backend interface {
	// Name identifies the backend in remote_links rows and config.
	Name() string

	// Authenticate verifies the credential is accepted. A missing
	// token is itself a failure; any HTTP status other than 401/403
	// counts as accepted.
	Authenticate(ctx context.Context) result.Result[Nothing]

	// ListIssues returns every matching issue keyed by backend ID,
	// following pagination until an empty page or a missing next link.
	ListIssues(ctx context.Context, filter IssueFilter) result.Result[map[string]SyncIssue]

	GetIssue(ctx context.Context, remoteID string) result.Result[SyncIssue]
	CreateIssue(ctx context.Context, payload IssuePayload) result.Result[SyncIssue]
	UpdateIssue(ctx context.Context, remoteID string, payload IssuePayload) result.Result[SyncIssue]

	// ListMilestones returns every milestone keyed by backend ID,
	// open and closed alike.
	ListMilestones(ctx context.Context) result.Result[map[string]SyncMilestone]

	GetMilestone(ctx context.Context, remoteID string) result.Result[SyncMilestone]
	CreateMilestone(ctx context.Context, payload MilestonePayload) result.Result[SyncMilestone]
	UpdateMilestone(ctx context.Context, remoteID string, payload MilestonePayload) result.Result[SyncMilestone]
	DeleteMilestone(ctx context.Context, remoteID string) result.Result[Nothing]
}

// BuildIssuePayload flattens a local issue into the canonical payload.
// Status and priority travel as scoped labels because the two-state
// remote model has no field for them; StateFor supplies the state.
func BuildIssuePayload(issue *roadmap.Issue) IssuePayload {
	labels := append([]string(nil), issue.Labels...)
	labels = append(labels, ScopedLabels(issue.Status, issue.Priority)...)

	p := IssuePayload{
		Title:     issue.Title,
		Body:      issue.Content,
		Labels:    labels,
		Milestone: issue.Milestone,
		State:     StateFor(issue.Status),
	}
	if issue.Assignee != "" {
		p.Assignees = []string{issue.Assignee}
	}
	return p
}

// BuildMilestonePayload flattens a local milestone into the canonical
// payload.
func BuildMilestonePayload(m *roadmap.Milestone) MilestonePayload {
	state := StateOpen
	if m.Status == roadmap.MilestoneClosed {
		state = StateClosed
	}
	return MilestonePayload{
		Title:       m.Name,
		Description: m.Headline,
		DueDate:     m.DueDate,
		State:       state,
	}
}
