package github

import (
	"reflect"
	"testing"
	"time"

	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/roadmap"
)

func TestFromGitHubIssue(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 3, 5, 12, 30, 0, 0, time.UTC)

	is := Issue{
		Number: 17,
		Title:  "Login times out",
		Body:   "Repro steps",
		State:  "open",
		Labels: []Label{
			{Name: "bug"},
			{Name: "status:in-progress"},
			{Name: "priority:high"},
		},
		Assignees: []User{{Login: "alice"}, {Login: "bob"}},
		Milestone: &Milestone{Number: 3, Title: "v1.0", State: "open"},
		CreatedAt: &created,
		UpdatedAt: &updated,
	}

	si, err := FromGitHubIssue(is, map[string]any{"number": 17})
	if err != nil {
		t.Fatalf("FromGitHubIssue() error = %v", err)
	}

	if si.ID != "17" || si.BackendID != "17" {
		t.Errorf("ID/BackendID = %q/%q, want 17/17", si.ID, si.BackendID)
	}
	if si.BackendName != BackendName {
		t.Errorf("BackendName = %q, want %q", si.BackendName, BackendName)
	}
	if si.Status != string(roadmap.StatusInProgress) {
		t.Errorf("Status = %q, want %q", si.Status, roadmap.StatusInProgress)
	}
	if si.Priority != string(roadmap.PriorityHigh) {
		t.Errorf("Priority = %q, want %q", si.Priority, roadmap.PriorityHigh)
	}
	if want := []string{"bug"}; !reflect.DeepEqual(si.Labels, want) {
		t.Errorf("Labels = %v, want %v (scoped labels consumed)", si.Labels, want)
	}
	if si.Assignee != "alice" {
		t.Errorf("Assignee = %q, want first assignee", si.Assignee)
	}
	if si.Milestone != "v1.0" {
		t.Errorf("Milestone = %q, want v1.0", si.Milestone)
	}
	if !si.Created.Equal(created) || !si.Updated.Equal(updated) {
		t.Errorf("timestamps = %v/%v, want %v/%v", si.Created, si.Updated, created, updated)
	}
	if si.RawResponse["number"] != 17 {
		t.Errorf("RawResponse not carried: %v", si.RawResponse)
	}
}

func TestFromGitHubIssueClosedStateWins(t *testing.T) {
	is := Issue{
		Number: 9,
		Title:  "Done already",
		State:  "closed",
		Labels: []Label{{Name: "status:in-progress"}},
	}

	si, err := FromGitHubIssue(is, nil)
	if err != nil {
		t.Fatalf("FromGitHubIssue() error = %v", err)
	}
	if si.Status != string(roadmap.StatusClosed) {
		t.Errorf("Status = %q, want closed to win over the label", si.Status)
	}
}

func TestFromGitHubIssueRejectsEmptyTitle(t *testing.T) {
	is := Issue{Number: 5, Title: "   ", State: "open"}

	if _, err := FromGitHubIssue(is, nil); err == nil {
		t.Fatal("FromGitHubIssue() accepted an empty title")
	}
}

func TestFromGitHubIssueFallsBackToSingleAssignee(t *testing.T) {
	is := Issue{
		Number:   2,
		Title:    "Assigned the old way",
		State:    "open",
		Assignee: &User{Login: "carol"},
	}

	si, err := FromGitHubIssue(is, nil)
	if err != nil {
		t.Fatalf("FromGitHubIssue() error = %v", err)
	}
	if si.Assignee != "carol" {
		t.Errorf("Assignee = %q, want carol", si.Assignee)
	}
}

func TestFromGitHubMilestone(t *testing.T) {
	due := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	ms := Milestone{
		Number:      4,
		Title:       "v2.0",
		Description: "Second release",
		State:       "open",
		DueOn:       &due,
	}

	sm, err := FromGitHubMilestone(ms, map[string]any{"number": 4})
	if err != nil {
		t.Fatalf("FromGitHubMilestone() error = %v", err)
	}

	if sm.ID != "4" || sm.BackendID != "4" {
		t.Errorf("ID/BackendID = %q/%q, want 4/4", sm.ID, sm.BackendID)
	}
	if sm.Title != "v2.0" || sm.Description != "Second release" {
		t.Errorf("Title/Description = %q/%q", sm.Title, sm.Description)
	}
	if sm.DueDate == nil || !sm.DueDate.Equal(due) {
		t.Errorf("DueDate = %v, want %v", sm.DueDate, due)
	}
}

func TestFromGitHubMilestoneDefaultsToOpen(t *testing.T) {
	sm, err := FromGitHubMilestone(Milestone{Number: 1, Title: "v1"}, nil)
	if err != nil {
		t.Fatalf("FromGitHubMilestone() error = %v", err)
	}
	if sm.Status != remote.StateOpen {
		t.Errorf("Status = %q, want open default", sm.Status)
	}
}

func TestToCreatePayloadOmitsEmptySections(t *testing.T) {
	sets := NewRemoteSets([]string{"bug"}, []string{"alice"}, map[string]int{"v1.0": 3})

	body := ToCreatePayload(remote.IssuePayload{Title: "Bare", Body: ""}, sets)

	if body["title"] != "Bare" {
		t.Errorf("title = %v", body["title"])
	}
	for _, key := range []string{"labels", "assignees", "milestone", "state"} {
		if _, ok := body[key]; ok {
			t.Errorf("%s present in bare create payload: %v", key, body[key])
		}
	}
}

func TestToUpdatePayloadAlwaysCarriesState(t *testing.T) {
	sets := NewRemoteSets(nil, nil, nil)

	open := ToUpdatePayload(remote.IssuePayload{Title: "T", State: remote.StateOpen}, sets)
	if open["state"] != "open" {
		t.Errorf("state = %v, want open", open["state"])
	}

	closed := ToUpdatePayload(remote.IssuePayload{Title: "T", State: remote.StateClosed}, sets)
	if closed["state"] != "closed" {
		t.Errorf("state = %v, want closed", closed["state"])
	}
}

func TestMilestoneBodyFormatsDueDate(t *testing.T) {
	due := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	body := toMilestoneBody(remote.MilestonePayload{
		Title:       "v2.0",
		Description: "Second",
		DueDate:     &due,
		State:       remote.StateClosed,
	})

	if body["due_on"] != "2025-06-30T00:00:00Z" {
		t.Errorf("due_on = %v, want RFC 3339", body["due_on"])
	}
	if body["state"] != "closed" {
		t.Errorf("state = %v, want closed", body["state"])
	}
}

// TestWireRoundTrip checks that an issue pulled off the wire and
// pushed back keeps its title, body, and state, whatever the scoped
// labels said.
func TestWireRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		state string
		label string
	}{
		{name: "open plain", state: "open"},
		{name: "open in progress", state: "open", label: "status:in-progress"},
		{name: "open backlog", state: "open", label: "status:backlog"},
		{name: "closed", state: "closed"},
	}

	sets := NewRemoteSets([]string{"bug", "status:in-progress", "status:backlog", "priority:high"}, nil, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := Issue{
				Number: 11,
				Title:  "Stable under sync",
				Body:   "Same body either way",
				State:  tt.state,
			}
			if tt.label != "" {
				wire.Labels = append(wire.Labels, Label{Name: tt.label})
			}

			si, err := FromGitHubIssue(wire, nil)
			if err != nil {
				t.Fatalf("FromGitHubIssue() error = %v", err)
			}

			local := si.LocalIssue()
			body := ToUpdatePayload(remote.BuildIssuePayload(local), sets)

			if body["title"] != wire.Title {
				t.Errorf("title = %v, want %q", body["title"], wire.Title)
			}
			if body["body"] != wire.Body {
				t.Errorf("body = %v, want %q", body["body"], wire.Body)
			}
			if body["state"] != wire.State {
				t.Errorf("state = %v, want %q", body["state"], wire.State)
			}
		})
	}
}
