package executor

import (
	"time"

	"github.com/untoldecay/roadmap/internal/result"
)

// ConflictSide is one side's snapshot at conflict time.
type ConflictSide struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Status  string    `json:"status"`
	Body    string    `json:"body,omitempty"`
	Updated time.Time `json:"updated"`
}

// SyncConflict records a linked pair where both sides changed since the
// last sync. Nothing is mutated for a conflicted pair; the operator
// resolves it and the next run picks the winner up as a one-sided edit.
type SyncConflict struct {
	EntityType string       `json:"entity_type"` // "issue" or "milestone"
	Local      ConflictSide `json:"local"`
	Remote     ConflictSide `json:"remote"`
	LastSync   time.Time    `json:"last_sync"`
}

// SyncReport is the outcome of one reconciliation run. IDs in the
// slices are local entity IDs except Pushed remote creations, which
// are recorded under their local ID too (the remote ID lands in
// remote_links). Errors is keyed by the entity that failed; Failures
// keeps the categorized originals for the error classifier. Err is
// only set when the whole run aborted.
type SyncReport struct {
	Backend       string            `json:"backend"`
	Pushed        []string          `json:"pushed"`
	Pulled        []string          `json:"pulled"`
	Linked        []string          `json:"linked,omitempty"`
	UpdatedRemote []string          `json:"updated_remote,omitempty"`
	UpdatedLocal  []string          `json:"updated_local,omitempty"`
	Conflicts     []SyncConflict    `json:"conflicts,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
	Failures      []*result.SyncError `json:"-"`
	Err           *result.SyncError `json:"fatal,omitempty"`
	Duration      time.Duration     `json:"duration"`
	DryRun        bool              `json:"dry_run,omitempty"`
}

func newReport(backend string, dryRun bool) *SyncReport {
	return &SyncReport{
		Backend: backend,
		Pushed:  []string{},
		Pulled:  []string{},
		Errors:  map[string]string{},
		DryRun:  dryRun,
	}
}

// Changed reports whether the run moved anything in either direction.
func (r *SyncReport) Changed() bool {
	return len(r.Pushed)+len(r.Pulled)+len(r.Linked)+len(r.UpdatedRemote)+len(r.UpdatedLocal) > 0
}

// HasFailures reports whether any entity failed or the run aborted.
func (r *SyncReport) HasFailures() bool {
	return len(r.Errors) > 0 || r.Err != nil
}

func (r *SyncReport) recordError(entityID string, serr *result.SyncError) {
	if serr == nil {
		return
	}
	r.Errors[entityID] = serr.Error()
	r.Failures = append(r.Failures, serr)
}
