package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/storage"
)

// IssueMerger folds a duplicate issue into a canonical one. It
// satisfies the resolver's Merger contract. The duplicate may be a
// local ID or a backend-native ID; a remote duplicate that was never
// pulled merges by adopting its identity as a link.
type IssueMerger struct {
	store       storage.Store
	backendName string
	now         func() time.Time
}

func NewIssueMerger(store storage.Store, backendName string) *IssueMerger {
	return &IssueMerger{store: store, backendName: backendName, now: time.Now}
}

func (m *IssueMerger) MergeIssues(ctx context.Context, canonicalID, duplicateID string) (*roadmap.Issue, error) {
	canonical, err := m.store.GetIssue(ctx, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("loading canonical issue: %w", err)
	}
	if canonical == nil {
		return nil, fmt.Errorf("canonical issue %s not found", canonicalID)
	}

	dupLocalID, err := m.resolveDuplicate(ctx, duplicateID)
	if err != nil {
		return nil, err
	}
	if dupLocalID == "" {
		// Never materialized locally: pairing the identities is the
		// whole merge.
		err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			if err := tx.SetRemoteLink(ctx, canonical.ID, m.backendName, duplicateID); err != nil {
				return err
			}
			canonical.SetRemoteID(m.backendName, duplicateID)
			_, err := tx.UpdateIssue(ctx, canonical)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("linking %s to %s: %w", canonical.ID, duplicateID, err)
		}
		return canonical, nil
	}
	if dupLocalID == canonical.ID {
		return canonical, nil
	}

	dup, err := m.store.GetIssue(ctx, dupLocalID)
	if err != nil {
		return nil, fmt.Errorf("loading duplicate issue: %w", err)
	}
	if dup == nil {
		return nil, fmt.Errorf("duplicate issue %s not found", dupLocalID)
	}

	// Dependents of the duplicate must survive the delete, re-pointed
	// at the canonical issue.
	graph, err := m.store.GetDependencyGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dependency graph: %w", err)
	}
	comments, err := m.store.GetComments(ctx, dup.ID)
	if err != nil {
		return nil, fmt.Errorf("loading comments: %w", err)
	}

	err = m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		// Delete first so the duplicate's remote identity is free for
		// the canonical issue to adopt.
		if err := tx.DeleteIssue(ctx, dup.ID); err != nil {
			return err
		}

		for issueID, deps := range graph {
			if issueID == dup.ID || issueID == canonical.ID {
				continue
			}
			repointed, changed := swapDep(deps, dup.ID, canonical.ID)
			if !changed {
				continue
			}
			if err := tx.ReplaceDependencies(ctx, issueID, repointed); err != nil {
				return err
			}
		}

		canonical.Labels = unionStrings(canonical.Labels, dup.Labels)
		deps, _ := swapDep(unionStrings(canonical.DependsOn, dup.DependsOn), dup.ID, canonical.ID)
		canonical.DependsOn = dropString(deps, canonical.ID)
		if strings.TrimSpace(canonical.Content) == "" {
			canonical.Content = dup.Content
		}
		for backend, remoteID := range dup.RemoteIDs {
			if _, taken := canonical.RemoteIDs[backend]; !taken {
				canonical.SetRemoteID(backend, remoteID)
			}
		}
		canonical.Touch(m.now())
		if _, err := tx.UpdateIssue(ctx, canonical); err != nil {
			return err
		}

		for _, c := range comments {
			if _, err := tx.AddComment(ctx, canonical.ID, c.Author, c.Body); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("merging %s into %s: %w", dup.ID, canonical.ID, err)
	}
	return canonical, nil
}

// resolveDuplicate maps the duplicate handle to a local issue ID.
// Returns "" when the handle is a remote ID with no local copy.
func (m *IssueMerger) resolveDuplicate(ctx context.Context, duplicateID string) (string, error) {
	if issue, err := m.store.GetIssue(ctx, duplicateID); err == nil && issue != nil {
		return duplicateID, nil
	}
	localID, err := m.store.FindLocalByRemote(ctx, m.backendName, duplicateID)
	if err != nil {
		return "", fmt.Errorf("resolving duplicate %s: %w", duplicateID, err)
	}
	return localID, nil
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// swapDep replaces from with to in a dependency list, dropping the
// duplicates the swap can introduce.
func swapDep(deps []string, from, to string) ([]string, bool) {
	out := make([]string, 0, len(deps))
	seen := make(map[string]bool, len(deps))
	changed := false
	for _, d := range deps {
		if d == from {
			d = to
			changed = true
		}
		if seen[d] {
			changed = true
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, changed
}

func dropString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
