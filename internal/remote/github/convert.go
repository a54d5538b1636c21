package github

import (
	"strconv"
	"time"

	"github.com/untoldecay/roadmap/internal/remote"
)

// FromGitHubIssue converts a wire issue into the canonical record.
// State and scoped labels fold into the normalized status and
// priority; the raw decoded response rides along for debugging.
func FromGitHubIssue(is Issue, raw map[string]any) (remote.SyncIssue, error) {
	names := labelNames(is.Labels)
	id := strconv.Itoa(is.Number)

	si := remote.SyncIssue{
		ID:          id,
		Title:       is.Title,
		Content:     is.Body,
		Status:      remote.StatusFromState(is.State, names),
		Priority:    remote.PriorityFromLabels(names),
		Milestone:   milestoneTitle(is.Milestone),
		Labels:      remote.StripScopedLabels(names),
		BackendName: BackendName,
		BackendID:   id,
		RawResponse: raw,
	}
	if login := assigneeLogin(is); login != "" {
		si.Assignee = login
	}
	if is.CreatedAt != nil {
		si.Created = is.CreatedAt.UTC()
	}
	if is.UpdatedAt != nil {
		si.Updated = is.UpdatedAt.UTC()
	}

	if err := si.Validate(); err != nil {
		return remote.SyncIssue{}, err
	}
	return si, nil
}

// FromGitHubMilestone converts a wire milestone into the canonical
// record.
func FromGitHubMilestone(ms Milestone, raw map[string]any) (remote.SyncMilestone, error) {
	id := strconv.Itoa(ms.Number)

	status := ms.State
	if status == "" {
		status = remote.StateOpen
	}

	sm := remote.SyncMilestone{
		ID:          id,
		Title:       ms.Title,
		Description: ms.Description,
		Status:      status,
		BackendName: BackendName,
		BackendID:   id,
		RawResponse: raw,
	}
	if ms.DueOn != nil {
		due := ms.DueOn.UTC()
		sm.DueDate = &due
	}
	if ms.CreatedAt != nil {
		sm.Created = ms.CreatedAt.UTC()
	}
	if ms.UpdatedAt != nil {
		sm.Updated = ms.UpdatedAt.UTC()
	}

	if err := sm.Validate(); err != nil {
		return remote.SyncMilestone{}, err
	}
	return sm, nil
}

// ToCreatePayload renders the canonical payload as a create request
// body. Labels, assignees, and a milestone the repository does not
// know are dropped rather than sent, so the request cannot 422 on a
// dangling reference; the validator reports those separately.
func ToCreatePayload(p remote.IssuePayload, sets *RemoteSets) map[string]any {
	body := map[string]any{
		"title": p.Title,
		"body":  p.Body,
	}

	if labels := knownLabels(p.Labels, sets); len(labels) > 0 {
		body["labels"] = labels
	}
	if assignees := knownAssignees(p.Assignees, sets); len(assignees) > 0 {
		body["assignees"] = assignees
	}
	if p.Milestone != "" {
		if number, ok := sets.MilestoneNumber(p.Milestone); ok {
			body["milestone"] = number
		}
	}

	return body
}

// ToUpdatePayload renders the canonical payload as an update request
// body: the create fields plus state, where only a closed payload
// closes the remote issue.
func ToUpdatePayload(p remote.IssuePayload, sets *RemoteSets) map[string]any {
	body := ToCreatePayload(p, sets)
	if p.State == remote.StateClosed {
		body["state"] = remote.StateClosed
	} else {
		body["state"] = remote.StateOpen
	}
	return body
}

// toMilestoneBody renders the canonical milestone payload as a request
// body. GitHub wants due_on as an RFC 3339 instant.
func toMilestoneBody(p remote.MilestonePayload) map[string]any {
	body := map[string]any{
		"title": p.Title,
	}
	if p.Description != "" {
		body["description"] = p.Description
	}
	if p.DueDate != nil {
		body["due_on"] = p.DueDate.UTC().Format(time.RFC3339)
	}
	if p.State == remote.StateClosed {
		body["state"] = remote.StateClosed
	} else if p.State == remote.StateOpen {
		body["state"] = remote.StateOpen
	}
	return body
}

func knownLabels(labels []string, sets *RemoteSets) []string {
	var out []string
	for _, l := range labels {
		if sets.HasLabel(l) {
			out = append(out, l)
		}
	}
	return out
}

func knownAssignees(logins []string, sets *RemoteSets) []string {
	var out []string
	for _, login := range logins {
		if sets.HasAssignee(login) {
			out = append(out, login)
		}
	}
	return out
}

func assigneeLogin(is Issue) string {
	if len(is.Assignees) > 0 {
		return is.Assignees[0].Login
	}
	if is.Assignee != nil {
		return is.Assignee.Login
	}
	return ""
}

func milestoneTitle(ms *Milestone) string {
	if ms == nil {
		return ""
	}
	return ms.Title
}
