package github

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/result"
)

// ListMilestones fetches every milestone, open and closed, keyed by
// backend ID.
func (c *Client) ListMilestones(ctx context.Context) result.Result[map[string]remote.SyncMilestone] {
	milestones := make(map[string]remote.SyncMilestone)

	params := map[string]string{"state": "all"}
	serr := c.paginate(ctx, "/repos/"+c.repoPath()+"/milestones", params, func(body []byte) (int, *result.SyncError) {
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return 0, result.Newf(result.CategoryInvalidData, "parsing milestones response: %v", err).WithCause(err)
		}
		for _, data := range raws {
			ms, raw, serr := decodeMilestone(data)
			if serr != nil {
				return 0, serr
			}
			sm, err := FromGitHubMilestone(ms, raw)
			if err != nil {
				return 0, result.Newf(result.CategoryInvalidData, "milestone #%d: %v", ms.Number, err).
					WithEntity("milestone", strconv.Itoa(ms.Number)).WithCause(err)
			}
			milestones[sm.BackendID] = sm
		}
		return len(raws), nil
	})
	if serr != nil {
		return result.Err[map[string]remote.SyncMilestone](serr)
	}
	return result.Ok(milestones)
}

// GetMilestone fetches one milestone by its backend ID.
func (c *Client) GetMilestone(ctx context.Context, remoteID string) result.Result[remote.SyncMilestone] {
	number, serr := parseRemoteID(remoteID, "milestone")
	if serr != nil {
		return result.Err[remote.SyncMilestone](serr)
	}

	body, _, serr := c.doRequest(ctx, http.MethodGet, c.buildURL("/repos/"+c.repoPath()+"/milestones/"+strconv.Itoa(number), nil), nil)
	if serr != nil {
		return result.Err[remote.SyncMilestone](serr.WithEntity("milestone", remoteID))
	}

	return decodeMilestoneResult(body)
}

// CreateMilestone creates a milestone. The cached remote sets are
// dropped so the new title resolves in later issue payloads.
func (c *Client) CreateMilestone(ctx context.Context, payload remote.MilestonePayload) result.Result[remote.SyncMilestone] {
	body, _, serr := c.doRequest(ctx, http.MethodPost, c.buildURL("/repos/"+c.repoPath()+"/milestones", nil), toMilestoneBody(payload))
	if serr != nil {
		return result.Err[remote.SyncMilestone](serr)
	}

	c.invalidateSets()
	return decodeMilestoneResult(body)
}

// UpdateMilestone patches a milestone.
func (c *Client) UpdateMilestone(ctx context.Context, remoteID string, payload remote.MilestonePayload) result.Result[remote.SyncMilestone] {
	number, serr := parseRemoteID(remoteID, "milestone")
	if serr != nil {
		return result.Err[remote.SyncMilestone](serr)
	}

	body, _, serr := c.doRequest(ctx, http.MethodPatch, c.buildURL("/repos/"+c.repoPath()+"/milestones/"+strconv.Itoa(number), nil), toMilestoneBody(payload))
	if serr != nil {
		return result.Err[remote.SyncMilestone](serr.WithEntity("milestone", remoteID))
	}

	c.invalidateSets()
	return decodeMilestoneResult(body)
}

// DeleteMilestone removes a milestone. Issues that referenced it keep
// existing on the remote, just unmilestoned.
func (c *Client) DeleteMilestone(ctx context.Context, remoteID string) result.Result[remote.Nothing] {
	number, serr := parseRemoteID(remoteID, "milestone")
	if serr != nil {
		return result.Err[remote.Nothing](serr)
	}

	_, _, serr = c.doRequest(ctx, http.MethodDelete, c.buildURL("/repos/"+c.repoPath()+"/milestones/"+strconv.Itoa(number), nil), nil)
	if serr != nil {
		return result.Err[remote.Nothing](serr.WithEntity("milestone", remoteID))
	}

	c.invalidateSets()
	return result.Ok(remote.Nothing{})
}

func decodeMilestoneResult(body []byte) result.Result[remote.SyncMilestone] {
	ms, raw, serr := decodeMilestone(body)
	if serr != nil {
		return result.Err[remote.SyncMilestone](serr)
	}
	sm, err := FromGitHubMilestone(ms, raw)
	if err != nil {
		return result.Err[remote.SyncMilestone](
			result.Newf(result.CategoryInvalidData, "milestone #%d: %v", ms.Number, err).
				WithEntity("milestone", strconv.Itoa(ms.Number)).WithCause(err))
	}
	return result.Ok(sm)
}

func decodeMilestone(data []byte) (Milestone, map[string]any, *result.SyncError) {
	var ms Milestone
	if err := json.Unmarshal(data, &ms); err != nil {
		return Milestone{}, nil, result.Newf(result.CategoryInvalidData, "parsing milestone response: %v", err).WithCause(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Milestone{}, nil, result.Newf(result.CategoryInvalidData, "parsing milestone response: %v", err).WithCause(err)
	}
	return ms, raw, nil
}
