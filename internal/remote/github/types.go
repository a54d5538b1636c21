// Package github implements the remote backend port against the
// GitHub REST API. It is the only package that knows GitHub's wire
// format; everything it hands back is a canonical remote.Sync* record
// wrapped in a result.Result.
package github

import (
	"net/http"
	"sync"
	"time"
)

// API configuration constants.
const (
	// BackendName keys remote_links rows and config sections.
	BackendName = "github"

	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the largest page the API serves.
	MaxPageSize = 100

	// MaxPages caps pagination so a malformed Link header cannot loop
	// forever.
	MaxPages = 1000

	// apiVersion pins the REST API revision.
	apiVersion = "2022-11-28"
)

// Client talks to one repository on one GitHub host. Requests are
// single-attempt: retry policy lives with the caller, which sees every
// failure as a categorized SyncError and can tell transient from
// permanent.
type Client struct {
	Token      string
	Owner      string
	Repo       string
	BaseURL    string // default DefaultAPIEndpoint; override for tests or GHE
	HTTPClient *http.Client

	mu   sync.Mutex
	sets *RemoteSets
}

// Issue is the wire shape of a GitHub issue. The issues endpoints also
// return pull requests; PullRequest is non-nil for those.
type Issue struct {
	ID          int        `json:"id"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"`
	Labels      []Label    `json:"labels"`
	Assignee    *User      `json:"assignee,omitempty"`
	Assignees   []User     `json:"assignees,omitempty"`
	Milestone   *Milestone `json:"milestone,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	HTMLURL     string     `json:"html_url,omitempty"`
	PullRequest *PullRef   `json:"pull_request,omitempty"`
}

// PullRef marks an Issue as actually being a pull request.
type PullRef struct {
	URL string `json:"url,omitempty"`
}

// Label is the wire shape of a GitHub label.
type Label struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// User is the wire shape of a GitHub user.
type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

// Milestone is the wire shape of a GitHub milestone. Number is the
// repository-scoped handle the API addresses milestones by.
type Milestone struct {
	ID          int        `json:"id"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	State       string     `json:"state"`
	DueOn       *time.Time `json:"due_on,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// apiErrorBody is the error envelope GitHub returns on non-2xx
// statuses.
type apiErrorBody struct {
	Message string          `json:"message"`
	Errors  []APIFieldError `json:"errors,omitempty"`
}

// APIFieldError is one field-level entry in a 422 validation response.
type APIFieldError struct {
	Resource string `json:"resource,omitempty"`
	Field    string `json:"field,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

func labelNames(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}
