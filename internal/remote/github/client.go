package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/result"
)

var _ remote.Backend = (*Client)(nil)

// NewClient creates a client for one repository.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a new client pointed at a custom base URL, for
// tests or GitHub Enterprise.
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// WithHTTPClient returns a new client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    c.BaseURL,
		HTTPClient: httpClient,
	}
}

// Name implements remote.Backend.
func (c *Client) Name() string { return BackendName }

// Authenticate verifies the token by calling /user. Only 401 and 403
// mean the credential was rejected; any other status proves the token
// reached the API and was accepted, which is all the caller needs.
func (c *Client) Authenticate(ctx context.Context) result.Result[remote.Nothing] {
	if c.Token == "" {
		return result.Err[remote.Nothing](
			result.New(result.CategoryAuthenticationFailed, "no token configured: set GITHUB_TOKEN"))
	}

	_, _, serr := c.doRequest(ctx, http.MethodGet, c.buildURL("/user", nil), nil)
	if serr != nil {
		switch serr.Category {
		case result.CategoryAuthenticationFailed,
			result.CategoryTokenExpired,
			result.CategoryPermissionDenied,
			result.CategoryNetworkError,
			result.CategoryTimeout:
			return result.Err[remote.Nothing](serr)
		}
	}
	return result.Ok(remote.Nothing{})
}

func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}
	return u
}

// maxResponseSize bounds response reads so a misbehaving endpoint
// cannot exhaust memory.
const maxResponseSize = 50 * 1024 * 1024

// doRequest performs one authenticated request and maps every failure
// mode onto an error category. It never retries; the executor owns
// retry policy and keys it off SyncError.Category.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body any) ([]byte, http.Header, *result.SyncError) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, result.Newf(result.CategoryInvalidData, "marshaling request body: %v", err).WithCause(err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, nil, result.Newf(result.CategoryUnknownError, "building request: %v", err).WithCause(err)
	}

	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, result.Newf(transportCategory(err), "%s %s: %v", method, urlStr, err).WithCause(err)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, nil, result.Newf(transportCategory(err), "reading response: %v", err).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, c.apiError(resp.StatusCode, respBody, resp.Header)
	}

	return respBody, resp.Header, nil
}

// transportCategory classifies a network-layer failure.
func transportCategory(err error) result.Category {
	if errors.Is(err, context.DeadlineExceeded) {
		return result.CategoryTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return result.CategoryTimeout
	}
	return result.CategoryNetworkError
}

// categoryForStatus is the fixed HTTP status to error category
// mapping. A 403 carrying rate-limit markers is the rate limiter
// speaking, not an ACL; it stays retryable.
func categoryForStatus(status int, header http.Header) result.Category {
	switch {
	case status == http.StatusBadRequest:
		return result.CategoryInvalidData
	case status == http.StatusUnauthorized:
		return result.CategoryAuthenticationFailed
	case status == http.StatusForbidden:
		if header.Get("X-RateLimit-Remaining") == "0" || header.Get("Retry-After") != "" {
			return result.CategoryAPIRateLimit
		}
		return result.CategoryPermissionDenied
	case status == http.StatusNotFound:
		return result.CategoryResourceNotFound
	case status == http.StatusGone:
		return result.CategoryResourceDeleted
	case status == http.StatusUnprocessableEntity:
		return result.CategoryInvalidData
	case status == http.StatusTooManyRequests:
		return result.CategoryAPIRateLimit
	case status >= 500:
		return result.CategoryServiceUnavailable
	default:
		return result.CategoryUnknownError
	}
}

// apiError converts a non-2xx response into a SyncError, capturing
// field-level details on 422 and the Retry-After hint on rate limits.
func (c *Client) apiError(status int, body []byte, header http.Header) *result.SyncError {
	var envelope apiErrorBody
	_ = json.Unmarshal(body, &envelope)

	message := envelope.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
		if len(message) > 200 {
			message = message[:200]
		}
	}

	category := categoryForStatus(status, header)
	serr := result.Newf(category, "github: %s (status %d)", message, status).
		WithMeta("status_code", status)

	if len(envelope.Errors) > 0 {
		serr = serr.WithMeta("fields", envelope.Errors)
		var fields []string
		for _, fe := range envelope.Errors {
			if fe.Field != "" {
				fields = append(fields, fe.Field+": "+fe.Code)
			}
		}
		if len(fields) > 0 {
			serr.Message = fmt.Sprintf("%s [%s]", serr.Message, strings.Join(fields, ", "))
		}
	}

	if category == result.CategoryAPIRateLimit {
		if retryAfter := header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				serr = serr.WithMeta("retry_after_seconds", seconds)
			}
		}
	}

	return serr
}

// linkNextPattern matches the "next" relation in a Link header.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// nextPageURL extracts the next-page URL from the Link header.
func nextPageURL(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// paginate walks GET pages of path until collect reports an empty
// page, the Link header stops advertising a next page, or the MaxPages
// guard trips. collect returns the number of records it decoded.
func (c *Client) paginate(ctx context.Context, path string, params map[string]string, collect func([]byte) (int, *result.SyncError)) *result.SyncError {
	page := 1
	for {
		select {
		case <-ctx.Done():
			return result.Newf(transportCategory(ctx.Err()), "listing %s: %v", path, ctx.Err()).WithCause(ctx.Err())
		default:
		}

		pageParams := map[string]string{
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
		}
		for k, v := range params {
			pageParams[k] = v
		}

		body, headers, serr := c.doRequest(ctx, http.MethodGet, c.buildURL(path, pageParams), nil)
		if serr != nil {
			return serr
		}

		n, serr := collect(body)
		if serr != nil {
			return serr
		}
		if n == 0 {
			return nil
		}
		if _, ok := nextPageURL(headers); !ok {
			return nil
		}

		page++
		if page > MaxPages {
			return result.Newf(result.CategoryUnknownError, "pagination limit exceeded: stopped after %d pages of %s", MaxPages, path)
		}
	}
}
