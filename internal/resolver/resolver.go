// Package resolver turns duplicate matches into resolution actions,
// either automatically against a confidence threshold or by prompting
// the operator.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/untoldecay/roadmap/internal/dedup"
	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/ui"
)

// ActionType tags what should happen to a matched pair.
type ActionType string

const (
	ActionMerge   ActionType = "merge"
	ActionDelete  ActionType = "delete"
	ActionArchive ActionType = "archive"
	ActionLink    ActionType = "link"
	ActionKeep    ActionType = "keep"
	ActionSkip    ActionType = "skip"
)

// Action is one resolution decision for a matched pair. LocalID is the
// canonical (surviving) side, RemoteID the duplicate's backend identifier.
// Canonical is populated when a merge produced a combined issue.
type Action struct {
	Type       ActionType
	Canonical  *roadmap.Issue
	LocalID    string
	RemoteID   string
	Confidence float64
	Note       string
}

// Merger merges a duplicate issue into a canonical one and returns the
// surviving record.
type Merger interface {
	MergeIssues(ctx context.Context, canonicalID, duplicateID string) (*roadmap.Issue, error)
}

// ErrNotInteractive is returned by Interactive when no TTY is attached.
var ErrNotInteractive = errors.New("interactive resolution requires a terminal")

// DefaultAutoResolveThreshold is the confidence bar for unattended linking.
const DefaultAutoResolveThreshold = 0.95

// Resolver decides what to do with detector matches. It is the only
// component that consults the auto-resolve threshold; the detector's
// recommendation is advisory input.
type Resolver struct {
	AutoResolveThreshold float64
	Merger               Merger
}

func New() *Resolver {
	return &Resolver{AutoResolveThreshold: DefaultAutoResolveThreshold}
}

// Automatic emits a link action for every match confident enough to
// resolve unattended. It never mutates state: the remote side may not
// exist locally yet, so the actual pairing is the executor's job.
// Matches below the bar come back as skips with the reason noted.
func (r *Resolver) Automatic(matches []dedup.Match) []Action {
	actions := make([]Action, 0, len(matches))
	for _, m := range matches {
		action := Action{
			LocalID:    m.Local.ID,
			RemoteID:   m.Remote.ID,
			Confidence: m.Confidence,
		}
		switch {
		case m.Recommended != dedup.RecommendAutoMerge:
			action.Type = ActionSkip
			action.Note = fmt.Sprintf("recommendation is %s, not auto_merge", m.Recommended)
		case m.Confidence < r.AutoResolveThreshold:
			action.Type = ActionSkip
			action.Note = fmt.Sprintf("confidence %.2f below auto-resolve threshold %.2f", m.Confidence, r.AutoResolveThreshold)
		default:
			action.Type = ActionLink
		}
		actions = append(actions, action)
	}
	return actions
}

// Interactive walks the operator through each match with a side-by-side
// comparison and a merge / keep / skip choice. A merge calls the issue
// service; if it fails the match degrades to a skip carrying the error.
// Aborting the prompt skips everything that remains.
func (r *Resolver) Interactive(ctx context.Context, matches []dedup.Match) ([]Action, error) {
	if !ui.IsInteractive() {
		return nil, ErrNotInteractive
	}

	actions := make([]Action, 0, len(matches))
	aborted := false
	for i, m := range matches {
		action := Action{
			LocalID:    m.Local.ID,
			RemoteID:   m.Remote.ID,
			Confidence: m.Confidence,
		}
		if aborted {
			action.Type = ActionSkip
			action.Note = "review aborted"
			actions = append(actions, action)
			continue
		}

		fmt.Fprintf(os.Stdout, "\n%s\n", ui.RenderMatchComparison(m, i+1, len(matches)))

		choice, err := promptChoice(m)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				aborted = true
				action.Type = ActionSkip
				action.Note = "review aborted"
				actions = append(actions, action)
				continue
			}
			return actions, fmt.Errorf("prompting for resolution: %w", err)
		}

		switch choice {
		case "merge":
			if r.Merger == nil {
				action.Type = ActionSkip
				action.Note = "merge unavailable: no issue service configured"
				break
			}
			merged, err := r.Merger.MergeIssues(ctx, m.Local.ID, m.Remote.ID)
			if err != nil {
				action.Type = ActionSkip
				action.Note = err.Error()
				break
			}
			action.Type = ActionMerge
			action.Canonical = merged
		case "keep":
			action.Type = ActionKeep
		default:
			action.Type = ActionSkip
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func promptChoice(m dedup.Match) (string, error) {
	choice := "skip"
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Resolve %s ↔ %s", m.Local.ID, m.Remote.ID)).
				Description(fmt.Sprintf("%s match, confidence %.2f", m.Type, m.Confidence)).
				Options(
					huh.NewOption("Merge – combine into the local issue", "merge"),
					huh.NewOption("Keep both – they are different issues", "keep"),
					huh.NewOption("Skip – decide later", "skip"),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return choice, nil
}
