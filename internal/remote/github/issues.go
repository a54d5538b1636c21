package github

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/result"
)

// ListIssues fetches every issue matching the filter, keyed by backend
// ID. Pull requests come back on the same endpoint and are dropped.
func (c *Client) ListIssues(ctx context.Context, filter remote.IssueFilter) result.Result[map[string]remote.SyncIssue] {
	issues := make(map[string]remote.SyncIssue)

	serr := c.paginate(ctx, "/repos/"+c.repoPath()+"/issues", issueParams(filter), func(body []byte) (int, *result.SyncError) {
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return 0, result.Newf(result.CategoryInvalidData, "parsing issues response: %v", err).WithCause(err)
		}
		for _, data := range raws {
			is, raw, serr := decodeIssue(data)
			if serr != nil {
				return 0, serr
			}
			if is.PullRequest != nil {
				continue
			}
			si, err := FromGitHubIssue(is, raw)
			if err != nil {
				return 0, result.Newf(result.CategoryInvalidData, "issue #%d: %v", is.Number, err).
					WithEntity("issue", strconv.Itoa(is.Number)).WithCause(err)
			}
			issues[si.BackendID] = si
		}
		return len(raws), nil
	})
	if serr != nil {
		return result.Err[map[string]remote.SyncIssue](serr)
	}
	return result.Ok(issues)
}

// GetIssue fetches one issue by its backend ID.
func (c *Client) GetIssue(ctx context.Context, remoteID string) result.Result[remote.SyncIssue] {
	number, serr := parseRemoteID(remoteID, "issue")
	if serr != nil {
		return result.Err[remote.SyncIssue](serr)
	}

	body, _, serr := c.doRequest(ctx, http.MethodGet, c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil), nil)
	if serr != nil {
		return result.Err[remote.SyncIssue](serr.WithEntity("issue", remoteID))
	}

	return c.decodeIssueResult(body, remoteID)
}

// CreateIssue creates an issue from the canonical payload, dropping
// references the repository does not know.
func (c *Client) CreateIssue(ctx context.Context, payload remote.IssuePayload) result.Result[remote.SyncIssue] {
	sets, serr := c.remoteSets(ctx)
	if serr != nil {
		return result.Err[remote.SyncIssue](serr)
	}

	body, _, serr := c.doRequest(ctx, http.MethodPost, c.buildURL("/repos/"+c.repoPath()+"/issues", nil), ToCreatePayload(payload, sets))
	if serr != nil {
		return result.Err[remote.SyncIssue](serr)
	}

	return c.decodeIssueResult(body, "")
}

// UpdateIssue patches an issue, carrying the state derived from the
// local status.
func (c *Client) UpdateIssue(ctx context.Context, remoteID string, payload remote.IssuePayload) result.Result[remote.SyncIssue] {
	number, serr := parseRemoteID(remoteID, "issue")
	if serr != nil {
		return result.Err[remote.SyncIssue](serr)
	}

	sets, serr := c.remoteSets(ctx)
	if serr != nil {
		return result.Err[remote.SyncIssue](serr)
	}

	body, _, serr := c.doRequest(ctx, http.MethodPatch, c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil), ToUpdatePayload(payload, sets))
	if serr != nil {
		return result.Err[remote.SyncIssue](serr.WithEntity("issue", remoteID))
	}

	return c.decodeIssueResult(body, remoteID)
}

// decodeIssueResult turns a single-issue response body into a
// canonical record. A pull request where an issue was expected is a
// missing resource from the tracker's point of view.
func (c *Client) decodeIssueResult(body []byte, remoteID string) result.Result[remote.SyncIssue] {
	is, raw, serr := decodeIssue(body)
	if serr != nil {
		return result.Err[remote.SyncIssue](serr)
	}
	if is.PullRequest != nil {
		return result.Err[remote.SyncIssue](
			result.Newf(result.CategoryResourceNotFound, "remote id %s is a pull request, not an issue", remoteID).
				WithEntity("issue", remoteID))
	}
	si, err := FromGitHubIssue(is, raw)
	if err != nil {
		return result.Err[remote.SyncIssue](
			result.Newf(result.CategoryInvalidData, "issue #%d: %v", is.Number, err).
				WithEntity("issue", strconv.Itoa(is.Number)).WithCause(err))
	}
	return result.Ok(si)
}

// decodeIssue unmarshals a wire issue twice: once into the typed shape
// and once into the raw map the canonical record carries.
func decodeIssue(data []byte) (Issue, map[string]any, *result.SyncError) {
	var is Issue
	if err := json.Unmarshal(data, &is); err != nil {
		return Issue{}, nil, result.Newf(result.CategoryInvalidData, "parsing issue response: %v", err).WithCause(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Issue{}, nil, result.Newf(result.CategoryInvalidData, "parsing issue response: %v", err).WithCause(err)
	}
	return is, raw, nil
}

// issueParams translates the canonical filter into query parameters.
// State, labels, assignee, and since all push down; anything GitHub
// cannot filter on server-side would be the caller's job.
func issueParams(filter remote.IssueFilter) map[string]string {
	params := map[string]string{"state": "all"}
	if filter.State == remote.StateOpen || filter.State == remote.StateClosed {
		params["state"] = filter.State
	}
	if len(filter.Labels) > 0 {
		params["labels"] = strings.Join(filter.Labels, ",")
	}
	if filter.Assignee != "" {
		params["assignee"] = filter.Assignee
	}
	if !filter.Since.IsZero() {
		params["since"] = filter.Since.UTC().Format(time.RFC3339)
	}
	return params
}

// parseRemoteID converts a backend ID into the number the API paths
// use.
func parseRemoteID(remoteID, entityType string) (int, *result.SyncError) {
	number, err := strconv.Atoi(remoteID)
	if err != nil || number <= 0 {
		return 0, result.Newf(result.CategoryInvalidData, "remote id %q is not a %s number", remoteID, entityType).
			WithEntity(entityType, remoteID)
	}
	return number, nil
}
