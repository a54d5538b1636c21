// Package roadmap provides a minimal public API for extending rdm with
// custom tooling.
//
// Most extensions should use direct SQL queries against rdm's database.
// This package exports only the essential types and functions needed by
// Go-based extensions that want to use rdm's storage layer
// programmatically.
package roadmap

import (
	"context"

	"github.com/untoldecay/roadmap/internal/config"
	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/storage"
	"github.com/untoldecay/roadmap/internal/storage/sqlite"
)

// Store is the interface for roadmap storage operations.
type Store = storage.Store

// Transaction provides atomic multi-operation support within a database
// transaction. Use Store.RunInTransaction() to obtain one.
type Transaction = storage.Transaction

// StoreConfig configures a storage instance.
type StoreConfig = storage.Config

// IssueFilter narrows ListIssues results.
type IssueFilter = storage.IssueFilter

// NewSQLiteStore opens (creating if needed) a SQLite store.
func NewSQLiteStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	return sqlite.New(ctx, cfg)
}

// FindRoadmapDir locates the .roadmap/ directory for the current
// working directory, walking up the tree. Empty when not inside an
// initialized project.
func FindRoadmapDir() string {
	return config.RoadmapDir()
}

// DefaultDBPath is the database location rdm itself would use, honoring
// the db.path config override.
func DefaultDBPath() string {
	return config.DBPath()
}

// Core types from internal/roadmap.
type (
	Issue           = roadmap.Issue
	Milestone       = roadmap.Milestone
	Project         = roadmap.Project
	Comment         = roadmap.Comment
	Progress        = roadmap.Progress
	Status          = roadmap.Status
	Priority        = roadmap.Priority
	MilestoneStatus = roadmap.MilestoneStatus
	ProjectStatus   = roadmap.ProjectStatus
)

// Status constants.
const (
	StatusBacklog    = roadmap.StatusBacklog
	StatusTodo       = roadmap.StatusTodo
	StatusInProgress = roadmap.StatusInProgress
	StatusClosed     = roadmap.StatusClosed
	StatusArchived   = roadmap.StatusArchived
)

// Priority constants.
const (
	PriorityLow      = roadmap.PriorityLow
	PriorityMedium   = roadmap.PriorityMedium
	PriorityHigh     = roadmap.PriorityHigh
	PriorityCritical = roadmap.PriorityCritical
)

// Milestone and project status constants.
const (
	MilestoneOpen   = roadmap.MilestoneOpen
	MilestoneClosed = roadmap.MilestoneClosed
	ProjectActive   = roadmap.ProjectActive
	ProjectArchived = roadmap.ProjectArchived
)
