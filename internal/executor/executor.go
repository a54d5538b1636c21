// Package executor applies a reconciliation plan against the store and
// a remote backend. It owns the six sync primitives (push, pull,
// update in both directions, link, conflict) plus the retry and
// circuit-breaker policy around every outbound call. Nothing here
// decides WHAT to sync; the detector and resolver feed it.
package executor

import (
	"context"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/untoldecay/roadmap/internal/debug"
	"github.com/untoldecay/roadmap/internal/dedup"
	"github.com/untoldecay/roadmap/internal/remote"
	"github.com/untoldecay/roadmap/internal/resolver"
	"github.com/untoldecay/roadmap/internal/result"
	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/storage"
)

// Config tunes the executor's retry and breaker policy.
type Config struct {
	// MaxRetries is the number of retries after the first attempt for
	// a transient failure.
	MaxRetries int

	// InitialInterval seeds the exponential backoff between attempts.
	InitialInterval time.Duration

	// MaxElapsedTime caps the total time spent retrying one call.
	MaxElapsedTime time.Duration

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit; BreakerCooldown is how long it stays open before a
	// half-open probe.
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// LastSync is the run-level fallback sync marker, used for
	// milestones and for issues that carry no per-entity marker.
	LastSync time.Time

	// DryRun computes the report without mutating either side.
	DryRun bool
}

// DefaultConfig returns the stock policy: three retries, half-second
// backoff seed, breaker opens after five consecutive failures.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		InitialInterval:  500 * time.Millisecond,
		MaxElapsedTime:   2 * time.Minute,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// Input is the material for one run: resolver actions plus both sides'
// full listings. Remote maps are keyed by backend ID.
type Input struct {
	Actions          []resolver.Action
	LocalIssues      []*roadmap.Issue
	RemoteIssues     map[string]remote.SyncIssue
	LocalMilestones  []*roadmap.Milestone
	RemoteMilestones map[string]remote.SyncMilestone
}

// Executor reconciles one backend against the store.
type Executor struct {
	store   storage.Store
	backend remote.Backend
	breaker *result.CircuitBreaker
	cfg     Config
	now     func() time.Time

	runStart time.Time
}

func New(store storage.Store, backend remote.Backend, cfg Config) *Executor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = 2 * time.Minute
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	return &Executor{
		store:   store,
		backend: backend,
		breaker: result.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		cfg:     cfg,
		now:     time.Now,
	}
}

// linkSet is the in-memory view of remote_links for one backend,
// maintained as the run creates new pairings.
type linkSet struct {
	byLocal  map[string]string
	byRemote map[string]string
}

func (l *linkSet) add(localID, remoteID string) {
	l.byLocal[localID] = remoteID
	l.byRemote[remoteID] = localID
}

// Run executes the plan. Milestones are reconciled before issues so
// pulled issues can resolve their milestone references; resolver link
// actions are applied before the issue pass so freshly paired records
// are not pushed or pulled a second time. Failures are per-entity: one
// bad record never aborts the run, only context cancellation does.
func (e *Executor) Run(ctx context.Context, in Input) *SyncReport {
	e.runStart = e.now()
	report := newReport(e.backend.Name(), e.cfg.DryRun)

	stored, err := e.store.ListRemoteLinks(ctx, e.backend.Name())
	if err != nil {
		report.Err = result.FromException(err, "", "")
		return report
	}
	links := &linkSet{byLocal: map[string]string{}, byRemote: map[string]string{}}
	for localID, remoteID := range stored {
		links.add(localID, remoteID)
	}

	localByID := make(map[string]*roadmap.Issue, len(in.LocalIssues))
	for _, issue := range in.LocalIssues {
		localByID[issue.ID] = issue
	}

	e.syncMilestones(ctx, report, links, in.LocalMilestones, in.RemoteMilestones)
	e.applyActions(ctx, report, links, localByID, in.Actions)
	e.syncIssues(ctx, report, links, in.LocalIssues, in.RemoteIssues)

	if ctx.Err() != nil && report.Err == nil {
		report.Err = result.FromException(ctx.Err(), "", "")
	}
	report.Duration = e.now().Sub(e.runStart)
	return report
}

// guard runs one per-entity step, converting panics and errors into
// categorized entries on the report.
func (e *Executor) guard(report *SyncReport, entityType, entityID string, fn func() *result.SyncError) {
	defer func() {
		if r := recover(); r != nil {
			serr := result.Newf(result.CategoryUnknownError, "panic during sync: %v", r).
				WithEntity(entityType, entityID)
			report.recordError(entityID, serr)
		}
	}()
	if serr := fn(); serr != nil {
		if serr.EntityType == "" {
			serr = serr.WithEntity(entityType, entityID)
		}
		report.recordError(entityID, serr)
	}
}

// ---- milestones ----

func (e *Executor) syncMilestones(ctx context.Context, report *SyncReport, links *linkSet, locals []*roadmap.Milestone, remotes map[string]remote.SyncMilestone) {
	byTitle := make(map[string]remote.SyncMilestone, len(remotes))
	for _, rm := range remotes {
		byTitle[dedup.Normalize(rm.Title)] = rm
	}

	sorted := append([]*roadmap.Milestone(nil), locals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, m := range sorted {
		if ctx.Err() != nil {
			return
		}
		m := m
		e.guard(report, "milestone", m.ID, func() *result.SyncError {
			if remoteID, ok := links.byLocal[m.ID]; ok {
				rm, listed := remotes[remoteID]
				if !listed {
					return nil // linked but not in the listing; leave it alone
				}
				return e.reconcileMilestone(ctx, report, m, rm)
			}
			// Titles identify milestones on the remote, so an exact
			// title match is a pairing, not a duplicate.
			if rm, ok := byTitle[dedup.Normalize(m.Name)]; ok && links.byRemote[rm.BackendID] == "" {
				return e.linkMilestone(ctx, report, links, m, rm)
			}
			return e.pushMilestone(ctx, report, links, m)
		})
	}

	for _, id := range sortedKeys(remotes) {
		if ctx.Err() != nil {
			return
		}
		if links.byRemote[id] != "" {
			continue
		}
		rm := remotes[id]
		e.guard(report, "milestone", "remote:"+id, func() *result.SyncError {
			return e.pullMilestone(ctx, report, links, rm)
		})
	}
}

func (e *Executor) pushMilestone(ctx context.Context, report *SyncReport, links *linkSet, m *roadmap.Milestone) *result.SyncError {
	if e.cfg.DryRun {
		report.Pushed = append(report.Pushed, m.ID)
		return nil
	}
	payload := remote.BuildMilestonePayload(m)
	created, serr := createWithProbe(ctx, e,
		func(ctx context.Context) result.Result[remote.SyncMilestone] {
			return e.backend.CreateMilestone(ctx, payload)
		},
		func(ctx context.Context) (remote.SyncMilestone, bool) {
			return e.probeMilestone(ctx, m.Name)
		})
	if serr != nil {
		return serr
	}

	now := e.now()
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.SetRemoteLink(ctx, m.ID, e.backend.Name(), created.BackendID); err != nil {
			return err
		}
		m.SetRemoteID(e.backend.Name(), created.BackendID)
		m.Updated = now
		_, err := tx.UpdateMilestone(ctx, m)
		return err
	})
	if err != nil {
		return result.FromException(err, "milestone", m.ID)
	}
	links.add(m.ID, created.BackendID)
	report.Pushed = append(report.Pushed, m.ID)
	debug.Logf("executor: pushed milestone %s as %s #%s", m.ID, e.backend.Name(), created.BackendID)
	return nil
}

func (e *Executor) pullMilestone(ctx context.Context, report *SyncReport, links *linkSet, rm remote.SyncMilestone) *result.SyncError {
	if e.cfg.DryRun {
		report.Pulled = append(report.Pulled, "remote:"+rm.BackendID)
		return nil
	}
	m := rm.LocalMilestone()
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.CreateMilestone(ctx, m); err != nil {
			return err
		}
		return tx.SetRemoteLink(ctx, m.ID, e.backend.Name(), rm.BackendID)
	})
	if err != nil {
		return result.FromException(err, "milestone", rm.BackendID)
	}
	links.add(m.ID, rm.BackendID)
	report.Pulled = append(report.Pulled, m.ID)
	debug.Logf("executor: pulled milestone %s #%s as %s", e.backend.Name(), rm.BackendID, m.ID)
	return nil
}

func (e *Executor) linkMilestone(ctx context.Context, report *SyncReport, links *linkSet, m *roadmap.Milestone, rm remote.SyncMilestone) *result.SyncError {
	if e.cfg.DryRun {
		report.Linked = append(report.Linked, m.ID)
		return nil
	}
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.SetRemoteLink(ctx, m.ID, e.backend.Name(), rm.BackendID); err != nil {
			return err
		}
		m.SetRemoteID(e.backend.Name(), rm.BackendID)
		_, err := tx.UpdateMilestone(ctx, m)
		return err
	})
	if err != nil {
		return result.FromException(err, "milestone", m.ID)
	}
	links.add(m.ID, rm.BackendID)
	report.Linked = append(report.Linked, m.ID)
	return nil
}

func (e *Executor) reconcileMilestone(ctx context.Context, report *SyncReport, m *roadmap.Milestone, rm remote.SyncMilestone) *result.SyncError {
	lastSync := e.cfg.LastSync
	localChanged := m.Updated.After(lastSync)
	remoteChanged := rm.Updated.After(lastSync)

	switch {
	case localChanged && remoteChanged:
		report.Conflicts = append(report.Conflicts, SyncConflict{
			EntityType: "milestone",
			Local:      ConflictSide{ID: m.ID, Title: m.Name, Status: string(m.Status), Body: m.Headline, Updated: m.Updated},
			Remote:     ConflictSide{ID: rm.BackendID, Title: rm.Title, Status: rm.Status, Body: rm.Description, Updated: rm.Updated},
			LastSync:   lastSync,
		})
		return nil

	case localChanged:
		if e.cfg.DryRun {
			report.UpdatedRemote = append(report.UpdatedRemote, m.ID)
			return nil
		}
		payload := remote.BuildMilestonePayload(m)
		_, serr := call(ctx, e, func(ctx context.Context) result.Result[remote.SyncMilestone] {
			return e.backend.UpdateMilestone(ctx, rm.BackendID, payload)
		})
		if serr != nil {
			return serr
		}
		report.UpdatedRemote = append(report.UpdatedRemote, m.ID)
		return nil

	case remoteChanged:
		if e.cfg.DryRun {
			report.UpdatedLocal = append(report.UpdatedLocal, m.ID)
			return nil
		}
		m.Name = rm.Title
		m.Headline = rm.Description
		m.DueDate = rm.DueDate
		m.Status = roadmap.MilestoneStatus(rm.Status)
		m.Updated = rm.Updated
		if _, err := e.store.UpdateMilestone(ctx, m); err != nil {
			return result.FromException(err, "milestone", m.ID)
		}
		report.UpdatedLocal = append(report.UpdatedLocal, m.ID)
		return nil
	}
	return nil
}

// ---- resolver actions ----

// applyActions pairs records the resolver decided belong together.
// Only link actions reach the store; merges were already performed by
// the issue service during interactive review, and keeps and skips are
// recorded decisions, not work.
func (e *Executor) applyActions(ctx context.Context, report *SyncReport, links *linkSet, localByID map[string]*roadmap.Issue, actions []resolver.Action) {
	for _, a := range actions {
		if ctx.Err() != nil {
			return
		}
		if a.Type != resolver.ActionLink {
			continue
		}
		a := a
		e.guard(report, "issue", a.LocalID, func() *result.SyncError {
			if links.byLocal[a.LocalID] != "" || links.byRemote[a.RemoteID] != "" {
				return nil // already paired
			}
			if e.cfg.DryRun {
				report.Linked = append(report.Linked, a.LocalID)
				return nil
			}
			issue := localByID[a.LocalID]
			now := e.now()
			err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
				if err := tx.SetRemoteLink(ctx, a.LocalID, e.backend.Name(), a.RemoteID); err != nil {
					return err
				}
				if issue == nil {
					var err error
					issue, err = tx.GetIssue(ctx, a.LocalID)
					if err != nil {
						return err
					}
					if issue == nil {
						return result.Newf(result.CategoryResourceNotFound,
							"link action references unknown local issue %s", a.LocalID)
					}
				}
				issue.SetRemoteID(e.backend.Name(), a.RemoteID)
				issue.SetLastSynced(now)
				_, err := tx.UpdateIssue(ctx, issue)
				return err
			})
			if err != nil {
				return result.FromException(err, "issue", a.LocalID)
			}
			links.add(a.LocalID, a.RemoteID)
			report.Linked = append(report.Linked, a.LocalID)
			debug.Logf("executor: linked %s to %s #%s (confidence %.2f)", a.LocalID, e.backend.Name(), a.RemoteID, a.Confidence)
			return nil
		})
	}
}

// ---- issues ----

func (e *Executor) syncIssues(ctx context.Context, report *SyncReport, links *linkSet, locals []*roadmap.Issue, remotes map[string]remote.SyncIssue) {
	sorted := append([]*roadmap.Issue(nil), locals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, issue := range sorted {
		if ctx.Err() != nil {
			return
		}
		issue := issue
		e.guard(report, "issue", issue.ID, func() *result.SyncError {
			remoteID, linked := links.byLocal[issue.ID]
			if !linked {
				// Archived issues are local bookkeeping; they only
				// travel when a remote copy already exists.
				if issue.Status == roadmap.StatusArchived {
					return nil
				}
				return e.pushIssue(ctx, report, links, issue)
			}
			rm, listed := remotes[remoteID]
			if !listed {
				return nil
			}
			return e.reconcileIssue(ctx, report, issue, rm)
		})
	}

	for _, id := range sortedKeys(remotes) {
		if ctx.Err() != nil {
			return
		}
		if links.byRemote[id] != "" {
			continue
		}
		rm := remotes[id]
		e.guard(report, "issue", "remote:"+id, func() *result.SyncError {
			return e.pullIssue(ctx, report, links, rm)
		})
	}
}

func (e *Executor) pushIssue(ctx context.Context, report *SyncReport, links *linkSet, issue *roadmap.Issue) *result.SyncError {
	// Race guard: a concurrent run may have linked it after we listed.
	if existing, err := e.store.GetRemoteLink(ctx, issue.ID, e.backend.Name()); err == nil && existing != "" {
		links.add(issue.ID, existing)
		return nil
	}
	if e.cfg.DryRun {
		report.Pushed = append(report.Pushed, issue.ID)
		return nil
	}

	payload := remote.BuildIssuePayload(issue)
	created, serr := createWithProbe(ctx, e,
		func(ctx context.Context) result.Result[remote.SyncIssue] {
			return e.backend.CreateIssue(ctx, payload)
		},
		func(ctx context.Context) (remote.SyncIssue, bool) {
			return e.probeIssue(ctx, issue.Title)
		})
	if serr != nil {
		return serr
	}

	now := e.now()
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.SetRemoteLink(ctx, issue.ID, e.backend.Name(), created.BackendID); err != nil {
			return err
		}
		issue.SetRemoteID(e.backend.Name(), created.BackendID)
		issue.SetLastSynced(laterOf(now, created.Updated))
		issue.Touch(now)
		_, err := tx.UpdateIssue(ctx, issue)
		return err
	})
	if err != nil {
		return result.FromException(err, "issue", issue.ID)
	}
	links.add(issue.ID, created.BackendID)
	report.Pushed = append(report.Pushed, issue.ID)
	debug.Logf("executor: pushed %s as %s #%s", issue.ID, e.backend.Name(), created.BackendID)
	return nil
}

func (e *Executor) pullIssue(ctx context.Context, report *SyncReport, links *linkSet, rm remote.SyncIssue) *result.SyncError {
	if e.cfg.DryRun {
		report.Pulled = append(report.Pulled, "remote:"+rm.BackendID)
		return nil
	}
	issue := rm.LocalIssue()
	issue.SetLastSynced(laterOf(e.now(), rm.Updated))
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.CreateIssue(ctx, issue); err != nil {
			return err
		}
		return tx.SetRemoteLink(ctx, issue.ID, e.backend.Name(), rm.BackendID)
	})
	if err != nil {
		return result.FromException(err, "issue", rm.BackendID)
	}
	links.add(issue.ID, rm.BackendID)
	report.Pulled = append(report.Pulled, issue.ID)
	debug.Logf("executor: pulled %s #%s as %s", e.backend.Name(), rm.BackendID, issue.ID)
	return nil
}

func (e *Executor) reconcileIssue(ctx context.Context, report *SyncReport, issue *roadmap.Issue, rm remote.SyncIssue) *result.SyncError {
	lastSync, ok := issue.LastSynced()
	if !ok {
		lastSync = e.cfg.LastSync
	}
	localChanged := issue.Updated.After(lastSync)
	remoteChanged := rm.Updated.After(lastSync)

	switch {
	case localChanged && remoteChanged:
		report.Conflicts = append(report.Conflicts, SyncConflict{
			EntityType: "issue",
			Local:      ConflictSide{ID: issue.ID, Title: issue.Title, Status: string(issue.Status), Body: issue.Content, Updated: issue.Updated},
			Remote:     ConflictSide{ID: rm.BackendID, Title: rm.Title, Status: rm.Status, Body: rm.Content, Updated: rm.Updated},
			LastSync:   lastSync,
		})
		debug.Logf("executor: conflict on %s (local %s vs remote %s)", issue.ID, issue.Updated.Format(time.RFC3339), rm.Updated.Format(time.RFC3339))
		return nil

	case localChanged:
		return e.updatePush(ctx, report, issue, rm.BackendID)

	case remoteChanged:
		return e.updatePull(ctx, report, issue, rm)
	}
	return nil
}

func (e *Executor) updatePush(ctx context.Context, report *SyncReport, issue *roadmap.Issue, remoteID string) *result.SyncError {
	if e.cfg.DryRun {
		report.UpdatedRemote = append(report.UpdatedRemote, issue.ID)
		return nil
	}
	payload := remote.BuildIssuePayload(issue)
	updated, serr := call(ctx, e, func(ctx context.Context) result.Result[remote.SyncIssue] {
		return e.backend.UpdateIssue(ctx, remoteID, payload)
	})
	if serr != nil {
		return serr
	}

	// The remote's post-write timestamp becomes the marker, so a skewed
	// remote clock cannot resurface this write as a remote change.
	issue.SetLastSynced(laterOf(e.now(), updated.Updated))
	if _, err := e.store.UpdateIssue(ctx, issue); err != nil {
		return result.FromException(err, "issue", issue.ID)
	}
	report.UpdatedRemote = append(report.UpdatedRemote, issue.ID)
	return nil
}

func (e *Executor) updatePull(ctx context.Context, report *SyncReport, issue *roadmap.Issue, rm remote.SyncIssue) *result.SyncError {
	if e.cfg.DryRun {
		report.UpdatedLocal = append(report.UpdatedLocal, issue.ID)
		return nil
	}
	issue.Title = rm.Title
	issue.Content = rm.Content
	issue.Status = roadmap.Status(rm.Status)
	issue.Priority = roadmap.Priority(rm.Priority)
	issue.Assignee = rm.Assignee
	issue.Milestone = rm.Milestone
	issue.Labels = append([]string(nil), rm.Labels...)
	issue.Updated = rm.Updated
	issue.SetLastSynced(laterOf(e.now(), rm.Updated))

	if _, err := e.store.UpdateIssue(ctx, issue); err != nil {
		return result.FromException(err, "issue", issue.ID)
	}
	report.UpdatedLocal = append(report.UpdatedLocal, issue.ID)
	return nil
}

// ---- remote call policy ----

// call wraps an idempotent remote operation with the breaker and the
// retry policy: transient categories retry with exponential backoff,
// rate limits honor Retry-After first, everything else fails fast.
func call[T any](ctx context.Context, e *Executor, fn func(context.Context) result.Result[T]) (T, *result.SyncError) {
	return createWithProbe(ctx, e, fn, nil)
}

// createWithProbe adds creation idempotency on top of call: after an
// attempt whose outcome is unknowable (timeout, connection reset), the
// probe checks whether the write actually landed before the next
// attempt re-creates it.
func createWithProbe[T any](ctx context.Context, e *Executor, fn func(context.Context) result.Result[T], probe func(context.Context) (T, bool)) (T, *result.SyncError) {
	var zero T
	if !e.breaker.Allow() {
		return zero, result.Newf(result.CategoryCircuitBreakerOpen,
			"%s calls suspended after repeated failures", e.backend.Name())
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialInterval
	bo.MaxElapsedTime = e.cfg.MaxElapsedTime
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.cfg.MaxRetries)), ctx)

	var out T
	var lastErr *result.SyncError
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		res := fn(ctx)
		if res.IsOk() {
			out = res.Unwrap()
			lastErr = nil
			return nil
		}
		serr := res.UnwrapErr()
		lastErr = serr
		if probe != nil && unknownOutcome(serr.Category) {
			if found, ok := probe(ctx); ok {
				out = found
				lastErr = nil
				return nil
			}
		}
		if !serr.Category.Transient() {
			return backoff.Permanent(serr)
		}
		e.waitRetryAfter(ctx, serr)
		return serr
	}, policy)

	if err != nil {
		e.breaker.RecordFailure()
		if lastErr == nil {
			lastErr = result.FromException(err, "", "")
		}
		if lastErr.Category.Transient() {
			return zero, result.Newf(result.CategoryRetryExhausted,
				"gave up after %d attempts: %s", attempts, lastErr.Message).WithCause(lastErr)
		}
		return zero, lastErr
	}
	e.breaker.RecordSuccess()
	return out, nil
}

// unknownOutcome reports whether a failed write may nevertheless have
// landed on the remote.
func unknownOutcome(c result.Category) bool {
	switch c {
	case result.CategoryTimeout, result.CategoryNetworkError, result.CategoryUnknownError:
		return true
	}
	return false
}

// waitRetryAfter blocks for the server-mandated wait on a rate limit,
// so the following backoff attempt lands inside the fresh window.
func (e *Executor) waitRetryAfter(ctx context.Context, serr *result.SyncError) {
	if serr.Category != result.CategoryAPIRateLimit {
		return
	}
	secs, ok := serr.Metadata["retry_after_seconds"].(int)
	if !ok || secs <= 0 {
		return
	}
	debug.Logf("executor: rate limited, honoring Retry-After %ds", secs)
	select {
	case <-time.After(time.Duration(secs) * time.Second):
	case <-ctx.Done():
	}
}

// probeIssue looks for a remote issue created during this run with the
// given title. Probe failures count as "not found"; the caller's retry
// loop owns error handling.
func (e *Executor) probeIssue(ctx context.Context, title string) (remote.SyncIssue, bool) {
	res := e.backend.ListIssues(ctx, remote.IssueFilter{Since: e.runStart})
	if res.IsErr() {
		return remote.SyncIssue{}, false
	}
	want := dedup.Normalize(title)
	for _, si := range res.Unwrap() {
		if dedup.Normalize(si.Title) == want {
			return si, true
		}
	}
	return remote.SyncIssue{}, false
}

func (e *Executor) probeMilestone(ctx context.Context, title string) (remote.SyncMilestone, bool) {
	res := e.backend.ListMilestones(ctx)
	if res.IsErr() {
		return remote.SyncMilestone{}, false
	}
	want := dedup.Normalize(title)
	for _, sm := range res.Unwrap() {
		if dedup.Normalize(sm.Title) == want {
			return sm, true
		}
	}
	return remote.SyncMilestone{}, false
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
