package remote

import (
	"strings"

	"github.com/untoldecay/roadmap/internal/roadmap"
)

// Scoped labels carry status and priority through remotes whose issue
// model has no field for them: "status:in-progress", "priority/high".
// Both ":" and "/" separators are accepted on read; writes use ":".
const (
	scopeStatus   = "status"
	scopePriority = "priority"
)

// SplitScopedLabel splits "scope:value" or "scope/value" into its
// parts. A label with no separator comes back with an empty scope.
func SplitScopedLabel(label string) (scope, value string) {
	if parts := strings.SplitN(label, ":", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	if parts := strings.SplitN(label, "/", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", label
}

// ScopedLabels encodes status and priority as scoped labels for a push
// payload. Todo is the unlabeled default so that a round trip through
// a plain remote issue lands back on todo; closed travels as state,
// not as a label.
func ScopedLabels(status roadmap.Status, priority roadmap.Priority) []string {
	var out []string
	switch status {
	case roadmap.StatusBacklog:
		out = append(out, scopeStatus+":"+string(roadmap.StatusBacklog))
	case roadmap.StatusInProgress:
		out = append(out, scopeStatus+":"+string(roadmap.StatusInProgress))
	}
	if priority != "" {
		out = append(out, scopePriority+":"+string(priority))
	}
	return out
}

// StatusFromState folds a remote two-state value and scoped status
// labels into the local status vocabulary. A closed state always wins;
// an open state defers to a status label when one is present and
// otherwise lands on todo.
func StatusFromState(state string, labels []string) string {
	if state == StateClosed {
		return string(roadmap.StatusClosed)
	}
	for _, label := range labels {
		scope, value := SplitScopedLabel(label)
		if scope != scopeStatus {
			continue
		}
		switch strings.ToLower(value) {
		case "in-progress", "in_progress":
			return string(roadmap.StatusInProgress)
		case "backlog":
			return string(roadmap.StatusBacklog)
		case "todo":
			return string(roadmap.StatusTodo)
		}
	}
	return string(roadmap.StatusTodo)
}

// PriorityFromLabels returns the priority carried by a scoped label,
// or "" when none is recognized.
func PriorityFromLabels(labels []string) string {
	for _, label := range labels {
		scope, value := SplitScopedLabel(label)
		if scope != scopePriority {
			continue
		}
		switch p := roadmap.Priority(strings.ToLower(value)); p {
		case roadmap.PriorityLow, roadmap.PriorityMedium, roadmap.PriorityHigh, roadmap.PriorityCritical:
			return string(p)
		}
	}
	return ""
}

// StripScopedLabels returns the labels with every status:/priority:
// entry removed, recognized or not; those scopes belong to fields, and
// an unrecognized value would otherwise reappear as a plain label on
// the next push.
func StripScopedLabels(labels []string) []string {
	var out []string
	for _, label := range labels {
		scope, _ := SplitScopedLabel(label)
		if scope == scopeStatus || scope == scopePriority {
			continue
		}
		out = append(out, label)
	}
	return out
}
