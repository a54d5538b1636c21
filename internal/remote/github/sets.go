package github

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/untoldecay/roadmap/internal/result"
)

// RemoteSets is the repository's label, assignee, and milestone
// universe, used to drop payload references the remote would reject
// with a 422. Lookups are case-insensitive, matching how GitHub
// resolves names.
type RemoteSets struct {
	labels     map[string]bool
	assignees  map[string]bool
	milestones map[string]int // lowercased title -> number
}

// NewRemoteSets builds a RemoteSets from plain values.
func NewRemoteSets(labels, assignees []string, milestones map[string]int) *RemoteSets {
	rs := &RemoteSets{
		labels:     make(map[string]bool, len(labels)),
		assignees:  make(map[string]bool, len(assignees)),
		milestones: make(map[string]int, len(milestones)),
	}
	for _, l := range labels {
		rs.labels[strings.ToLower(l)] = true
	}
	for _, a := range assignees {
		rs.assignees[strings.ToLower(a)] = true
	}
	for title, number := range milestones {
		rs.milestones[strings.ToLower(title)] = number
	}
	return rs
}

// HasLabel reports whether the repository defines the label.
func (rs *RemoteSets) HasLabel(name string) bool {
	return rs.labels[strings.ToLower(name)]
}

// HasAssignee reports whether the login can be assigned issues.
func (rs *RemoteSets) HasAssignee(login string) bool {
	return rs.assignees[strings.ToLower(login)]
}

// MilestoneNumber resolves a milestone title to the number the API
// addresses it by.
func (rs *RemoteSets) MilestoneNumber(title string) (int, bool) {
	n, ok := rs.milestones[strings.ToLower(title)]
	return n, ok
}

// remoteSets returns the cached sets, fetching them on first use. The
// three listings are independent, so they run in parallel through a
// bounded errgroup.
func (c *Client) remoteSets(ctx context.Context) (*RemoteSets, *result.SyncError) {
	c.mu.Lock()
	cached := c.sets
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var (
		labels, assignees []string
		milestones        map[string]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)

	g.Go(func() error {
		names, serr := c.fetchLabelNames(gctx)
		if serr != nil {
			return serr
		}
		labels = names
		return nil
	})
	g.Go(func() error {
		logins, serr := c.fetchAssigneeLogins(gctx)
		if serr != nil {
			return serr
		}
		assignees = logins
		return nil
	})
	g.Go(func() error {
		byTitle, serr := c.fetchMilestoneNumbers(gctx)
		if serr != nil {
			return serr
		}
		milestones = byTitle
		return nil
	})

	if err := g.Wait(); err != nil {
		var serr *result.SyncError
		if errors.As(err, &serr) {
			return nil, serr
		}
		return nil, result.FromException(err, "", "")
	}

	sets := NewRemoteSets(labels, assignees, milestones)
	c.mu.Lock()
	c.sets = sets
	c.mu.Unlock()
	return sets, nil
}

// invalidateSets drops the cache after a mutation that changes the
// milestone universe.
func (c *Client) invalidateSets() {
	c.mu.Lock()
	c.sets = nil
	c.mu.Unlock()
}

func (c *Client) fetchLabelNames(ctx context.Context) ([]string, *result.SyncError) {
	var names []string
	serr := c.paginate(ctx, "/repos/"+c.repoPath()+"/labels", nil, func(body []byte) (int, *result.SyncError) {
		var labels []Label
		if err := json.Unmarshal(body, &labels); err != nil {
			return 0, result.Newf(result.CategoryInvalidData, "parsing labels response: %v", err).WithCause(err)
		}
		for _, l := range labels {
			names = append(names, l.Name)
		}
		return len(labels), nil
	})
	if serr != nil {
		return nil, serr
	}
	return names, nil
}

func (c *Client) fetchAssigneeLogins(ctx context.Context) ([]string, *result.SyncError) {
	var logins []string
	serr := c.paginate(ctx, "/repos/"+c.repoPath()+"/assignees", nil, func(body []byte) (int, *result.SyncError) {
		var users []User
		if err := json.Unmarshal(body, &users); err != nil {
			return 0, result.Newf(result.CategoryInvalidData, "parsing assignees response: %v", err).WithCause(err)
		}
		for _, u := range users {
			logins = append(logins, u.Login)
		}
		return len(users), nil
	})
	if serr != nil {
		return nil, serr
	}
	return logins, nil
}

func (c *Client) fetchMilestoneNumbers(ctx context.Context) (map[string]int, *result.SyncError) {
	byTitle := make(map[string]int)
	params := map[string]string{"state": "all"}
	serr := c.paginate(ctx, "/repos/"+c.repoPath()+"/milestones", params, func(body []byte) (int, *result.SyncError) {
		var milestones []Milestone
		if err := json.Unmarshal(body, &milestones); err != nil {
			return 0, result.Newf(result.CategoryInvalidData, "parsing milestones response: %v", err).WithCause(err)
		}
		for _, m := range milestones {
			byTitle[m.Title] = m.Number
		}
		return len(milestones), nil
	})
	if serr != nil {
		return nil, serr
	}
	return byTitle, nil
}
