// Package storage defines the interface for roadmap storage backends.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/roadmap/internal/roadmap"
)

// CreateError reports a create on an entity ID that already exists.
// Creates are strict; sync paths that want upsert semantics check for
// this error and fall through to update.
type CreateError struct {
	Entity string
	ID     string
	Err    error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

func (e *CreateError) Unwrap() error { return e.Err }

// IssueFilter narrows ListIssues. Zero fields match everything.
type IssueFilter struct {
	Status      roadmap.Status
	MilestoneID string
	Label       string
	Assignee    string
	Limit       int
}

// Transaction exposes the write operations that run inside a single
// database transaction. If the callback passed to RunInTransaction
// returns an error or panics, every operation performed through its
// Transaction is rolled back; on a nil return they commit together.
//
// Create is fail-if-exists (duplicate ID returns a *CreateError).
// Update is no-op-if-missing and reports whether a row was written.
// Delete cascades to dependents and is idempotent.
type Transaction interface {
	// Projects
	CreateProject(ctx context.Context, project *roadmap.Project) error
	UpdateProject(ctx context.Context, project *roadmap.Project) (bool, error)

	// Milestones
	CreateMilestone(ctx context.Context, milestone *roadmap.Milestone) error
	UpdateMilestone(ctx context.Context, milestone *roadmap.Milestone) (bool, error)

	// Issues
	CreateIssue(ctx context.Context, issue *roadmap.Issue) error
	UpdateIssue(ctx context.Context, issue *roadmap.Issue) (bool, error)
	DeleteIssue(ctx context.Context, id string) error
	GetIssue(ctx context.Context, id string) (*roadmap.Issue, error) // read-your-writes

	// Dependencies (ordered; FK-checked against issues)
	AddDependency(ctx context.Context, issueID, dependsOnID string) error
	RemoveDependency(ctx context.Context, issueID, dependsOnID string) error
	ReplaceDependencies(ctx context.Context, issueID string, dependsOn []string) error

	// Labels (set semantics)
	AddLabel(ctx context.Context, issueID, label string) error
	RemoveLabel(ctx context.Context, issueID, label string) error

	// Comments
	AddComment(ctx context.Context, issueID, author, body string) (*roadmap.Comment, error)

	// Remote links (upsert; (local,backend) and (backend,remote) both unique)
	SetRemoteLink(ctx context.Context, localID, backend, remoteID string) error

	// Sync state KV (upsert)
	SetSyncState(ctx context.Context, key, value string) error
	GetSyncState(ctx context.Context, key string) (string, error) // missing key -> ""

	// File sync state
	UpsertFileSyncState(ctx context.Context, path, contentHash string) error
	ClearFileSyncState(ctx context.Context) error

	// DeleteAllIssues supports full rebuild: drops issue rows, keeping
	// project and milestone rows in place.
	DeleteAllIssues(ctx context.Context) error
}

// Store is the storage port. One Store serves many workers; each worker
// takes its own connection through Conn or runs inside RunInTransaction.
type Store interface {
	Transaction

	// Reads
	GetProject(ctx context.Context, id string) (*roadmap.Project, error)
	GetProjectByName(ctx context.Context, name string) (*roadmap.Project, error)
	ListProjects(ctx context.Context) ([]*roadmap.Project, error)
	GetMilestone(ctx context.Context, id string) (*roadmap.Milestone, error)
	GetMilestoneByName(ctx context.Context, name string) (*roadmap.Milestone, error)
	ListMilestones(ctx context.Context) ([]*roadmap.Milestone, error)
	MilestoneProgress(ctx context.Context, id string) (roadmap.Progress, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]*roadmap.Issue, error)
	GetDependencies(ctx context.Context, issueID string) ([]string, error)
	GetDependencyGraph(ctx context.Context) (map[string][]string, error)
	GetLabels(ctx context.Context, issueID string) ([]string, error)
	GetComments(ctx context.Context, issueID string) ([]*roadmap.Comment, error)

	// Deletes outside a caller transaction
	DeleteProject(ctx context.Context, id string) error
	DeleteMilestone(ctx context.Context, id string) error

	// Remote links
	GetRemoteLink(ctx context.Context, localID, backend string) (string, error) // missing -> ""
	FindLocalByRemote(ctx context.Context, backend, remoteID string) (string, error)
	ListRemoteLinks(ctx context.Context, backend string) (map[string]string, error)
	DeleteRemoteLink(ctx context.Context, localID, backend string) error

	// File sync state
	GetFileSyncState(ctx context.Context, path string) (string, error) // missing -> ""
	HasFileChanged(ctx context.Context, path string) (bool, error)

	// IsSafeForWrites scans the managed tree for merge-conflict
	// sentinels and pings the connection. A conflicted tree sets
	// git_conflicts_detected and conflict_files in sync_state; writes
	// stay refused until a later probe finds the tree clean.
	IsSafeForWrites(ctx context.Context) (bool, string)

	// RunInTransaction executes fn atomically. A nil return commits;
	// an error or panic rolls back (the panic is re-raised).
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Maintenance
	Vacuum(ctx context.Context) error
	Close() error
	Path() string

	// UnderlyingDB exposes the pooled connection for callers that need
	// raw access. Direct use bypasses the store's guarantees.
	UnderlyingDB() *sql.DB

	// Conn hands out a single pooled connection for scoped per-worker
	// use. The caller must close it.
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Config holds database configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// RoadmapDir is the root of the managed markdown tree (the
	// directory holding projects/, milestones/, issues/). Used by the
	// write-safety probe.
	RoadmapDir string

	// Prefix namespaces minted entity IDs (issue <prefix>-N, milestone
	// <prefix>-mN, project <prefix>-pN). Defaults to "rm".
	Prefix string
}
